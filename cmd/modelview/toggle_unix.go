//go:build unix

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// debugToggle turns SIGUSR1 into node dump toggles.
func debugToggle() (<-chan struct{}, func()) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)

	toggle := make(chan struct{})
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sig:
				select {
				case toggle <- struct{}{}:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()
	return toggle, func() {
		signal.Stop(sig)
		close(done)
	}
}
