// Package vfs merges packed archives and directory trees into one
// case-insensitive namespace where later registrations override earlier ones.
package vfs

import (
	"bytes"
	"io"
	"strings"
)

// Entry is one named file a Source provides. Name is the raw name as the
// source stores it; the index normalizes it.
type Entry struct {
	Name string
	Size int64
}

// Source is a read-only provider of named byte streams.
type Source interface {
	// Name identifies the source in diagnostics.
	Name() string
	// Entries enumerates every file the source holds.
	Entries() ([]Entry, error)
	// Open returns the content of a raw name reported by Entries.
	Open(name string) (io.ReadSeekCloser, error)
}

// NormalizeName folds case and separators so that lookups are
// case-insensitive and accept either slash style.
func NormalizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.ToLower(name)

	var b strings.Builder
	b.Grow(len(name))
	prevSlash := true // drops leading separators
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	out := strings.TrimSuffix(b.String(), "/")
	for strings.HasPrefix(out, "./") {
		out = out[2:]
	}
	return out
}

type bytesReadSeekCloser struct {
	*bytes.Reader
}

func (bytesReadSeekCloser) Close() error { return nil }

// NewBytesStream wraps in-memory content as a seekable stream.
func NewBytesStream(data []byte) io.ReadSeekCloser {
	return bytesReadSeekCloser{bytes.NewReader(data)}
}
