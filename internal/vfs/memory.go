package vfs

import (
	"fmt"
	"io"
)

// MemSource is an in-memory source, useful for generated or embedded assets.
// Files keep insertion order so that Entries is deterministic.
type MemSource struct {
	name  string
	order []string
	files map[string][]byte
}

// NewMemSource creates an empty in-memory source.
func NewMemSource(name string) *MemSource {
	return &MemSource{name: name, files: make(map[string][]byte)}
}

// Add stores data under a raw name, replacing an identical raw name.
func (s *MemSource) Add(name string, data []byte) *MemSource {
	if _, ok := s.files[name]; !ok {
		s.order = append(s.order, name)
	}
	s.files[name] = data
	return s
}

// Name returns the source name.
func (s *MemSource) Name() string { return s.name }

// Entries lists the stored files in insertion order.
func (s *MemSource) Entries() ([]Entry, error) {
	entries := make([]Entry, len(s.order))
	for i, name := range s.order {
		entries[i] = Entry{Name: name, Size: int64(len(s.files[name]))}
	}
	return entries, nil
}

// Open returns the stored content.
func (s *MemSource) Open(name string) (io.ReadSeekCloser, error) {
	data, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: %q not stored", s.name, name)
	}
	return NewBytesStream(data), nil
}
