package vfs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DirSource serves the files below a directory.
type DirSource struct {
	root string
}

// NewDirSource registers the directory at path. In strict mode every path
// component must match the on-disk name exactly; otherwise components are
// discovered case-insensitively.
func NewDirSource(path string, strict bool) (*DirSource, error) {
	root, err := resolveDir(path, strict)
	if err != nil {
		return nil, err
	}
	return &DirSource{root: root}, nil
}

// Name returns the resolved root directory.
func (d *DirSource) Name() string {
	return d.root
}

// Entries walks the tree and reports slash-separated relative paths.
func (d *DirSource) Entries() ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(d.root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() {
			return nil
		}
		info, err := de.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Name: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", d.root, err)
	}
	return entries, nil
}

// Open opens a file lazily from disk.
func (d *DirSource) Open(name string) (io.ReadSeekCloser, error) {
	f, err := os.Open(filepath.Join(d.root, filepath.FromSlash(name)))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// resolveDir walks path one component at a time, comparing against the
// parent's directory listing so that case differences are visible even on
// case-insensitive host filesystems.
func resolveDir(path string, strict bool) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty directory path", ErrConfiguration)
	}

	clean := filepath.Clean(path)
	current := filepath.VolumeName(clean)
	rest := clean[len(current):]
	if strings.HasPrefix(rest, string(filepath.Separator)) {
		current += string(filepath.Separator)
		rest = rest[1:]
	} else if current == "" {
		current = "."
	}

	for _, part := range strings.Split(rest, string(filepath.Separator)) {
		if part == "" || part == "." {
			continue
		}
		if part == ".." {
			current = filepath.Join(current, part)
			continue
		}

		name, err := matchChild(current, part, strict)
		if err != nil {
			return "", fmt.Errorf("%w: data directory %s: %v", ErrConfiguration, path, err)
		}
		current = filepath.Join(current, name)
	}

	info, err := os.Stat(current)
	if err != nil {
		return "", fmt.Errorf("%w: data directory %s: %v", ErrConfiguration, path, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: data directory %s is not a directory", ErrConfiguration, path)
	}
	return current, nil
}

// matchChild finds want inside dir. An exact match always wins; a
// case-insensitive match is accepted only when strict is off.
func matchChild(dir, want string, strict bool) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	folded := ""
	for _, e := range entries {
		if e.Name() == want {
			return want, nil
		}
		if folded == "" && strings.EqualFold(e.Name(), want) {
			folded = e.Name()
		}
	}

	switch {
	case folded == "":
		return "", fmt.Errorf("%q not found in %s", want, dir)
	case strict:
		return "", fmt.Errorf("%q does not match on-disk name %q (strict mode)", want, folded)
	default:
		return folded, nil
	}
}
