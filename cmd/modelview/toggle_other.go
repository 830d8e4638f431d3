//go:build !unix

package main

// debugToggle has no signal source here; use --dump-nodes instead.
func debugToggle() (<-chan struct{}, func()) {
	return nil, func() {}
}
