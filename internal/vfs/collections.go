package vfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Collections resolves archive identifiers such as "data.grf" against an
// ordered list of data directories. Later directories take precedence.
type Collections struct {
	dirs   []string
	strict bool
}

// NewCollections creates a resolver over dirs.
func NewCollections(dirs []string, strict bool) *Collections {
	return &Collections{dirs: append([]string(nil), dirs...), strict: strict}
}

// Resolve returns the path of the file called name. In strict mode only an
// exact name matches and a case-only difference is reported as an error
// naming both spellings.
func (c *Collections) Resolve(name string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("%w: archive %s: %v", ErrConfiguration, name, err)
		}
		return name, nil
	}

	var mismatch string
	for i := len(c.dirs) - 1; i >= 0; i-- {
		dir := c.dirs[i]
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		folded := ""
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if e.Name() == name {
				return filepath.Join(dir, name), nil
			}
			if folded == "" && strings.EqualFold(e.Name(), name) {
				folded = e.Name()
			}
		}

		if folded != "" {
			if !c.strict {
				return filepath.Join(dir, folded), nil
			}
			if mismatch == "" {
				mismatch = filepath.Join(dir, folded)
			}
		}
	}

	if mismatch != "" {
		return "", fmt.Errorf("%w: archive %q only matches %q by case (strict mode)", ErrConfiguration, name, mismatch)
	}
	return "", fmt.Errorf("%w: archive %q not found in data directories %v", ErrConfiguration, name, c.dirs)
}
