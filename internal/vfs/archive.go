package vfs

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/Faultbox/midgard-scene/pkg/grf"
)

// OpenArchive opens a packed container, choosing the codec by extension.
func OpenArchive(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".grf", ".gpf":
		return OpenGRF(path)
	case ".zip", ".pk3":
		return OpenZip(path)
	default:
		return nil, fmt.Errorf("%w: %s: unknown archive type", ErrOpen, path)
	}
}

// GRFSource serves the entries of a GRF archive, inflating on demand.
type GRFSource struct {
	path    string
	archive *grf.Archive
}

// OpenGRF opens a GRF archive.
func OpenGRF(path string) (*GRFSource, error) {
	archive, err := grf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpen, path, err)
	}
	return &GRFSource{path: path, archive: archive}, nil
}

// Name returns the archive path.
func (g *GRFSource) Name() string { return g.path }

// Entries lists the archive's file table.
func (g *GRFSource) Entries() ([]Entry, error) {
	raw := g.archive.Entries()
	entries := make([]Entry, len(raw))
	for i, e := range raw {
		entries[i] = Entry{Name: e.Name, Size: int64(e.UncompressedSize)}
	}
	return entries, nil
}

// Open decompresses one entry.
func (g *GRFSource) Open(name string) (io.ReadSeekCloser, error) {
	data, err := g.archive.Read(name)
	if err != nil {
		return nil, err
	}
	return NewBytesStream(data), nil
}

// Close closes the archive file.
func (g *GRFSource) Close() error { return g.archive.Close() }

// ZipSource serves the entries of a zip (or pk3) archive.
type ZipSource struct {
	path   string
	reader *zip.ReadCloser
	files  map[string]*zip.File
}

// OpenZip opens a zip archive.
func OpenZip(path string) (*ZipSource, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpen, path, err)
	}
	z := &ZipSource{path: path, reader: rc, files: make(map[string]*zip.File, len(rc.File))}
	for _, f := range rc.File {
		z.files[f.Name] = f
	}
	return z, nil
}

// Name returns the archive path.
func (z *ZipSource) Name() string { return z.path }

// Entries lists regular files in the central directory.
func (z *ZipSource) Entries() ([]Entry, error) {
	entries := make([]Entry, 0, len(z.reader.File))
	for _, f := range z.reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, Entry{Name: f.Name, Size: int64(f.UncompressedSize64)})
	}
	return entries, nil
}

// Open inflates one entry into memory so the stream can seek.
func (z *ZipSource) Open(name string) (io.ReadSeekCloser, error) {
	f, ok := z.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: %q not in archive", z.path, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: reading %q: %w", z.path, name, err)
	}
	return NewBytesStream(data), nil
}

// Close closes the archive file.
func (z *ZipSource) Close() error { return z.reader.Close() }
