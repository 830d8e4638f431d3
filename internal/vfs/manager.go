package vfs

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Config contains filesystem options.
type Config struct {
	// Strict requires data directories to match on-disk case exactly.
	Strict bool
	// CacheBytes enables an in-memory content cache of that size. Zero disables it.
	CacheBytes int64
	// Logger receives index diagnostics. Nil means no logging.
	Logger *zap.Logger
}

// Manager owns an ordered list of sources and resolves names against an
// index built from them. Registration and BuildIndex are single-threaded
// setup; once BuildIndex returns, Get, Exists and Which may be called from
// any number of goroutines.
type Manager struct {
	strict bool
	log    *zap.Logger
	cache  *Cache

	mu      sync.Mutex // guards sources during setup
	sources []Source
	index   atomic.Pointer[index]
}

type indexEntry struct {
	source Source
	raw    string
	size   int64
}

type index struct {
	entries map[string]indexEntry
}

// New creates an empty filesystem.
func New(cfg Config) *Manager {
	m := &Manager{
		strict: cfg.Strict,
		log:    cfg.Logger,
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if cfg.CacheBytes > 0 {
		m.cache = NewCache(cfg.CacheBytes)
	}
	return m
}

// Strict reports whether the manager runs in strict mode.
func (m *Manager) Strict() bool {
	return m.strict
}

// AddArchive registers a source. It takes effect at the next BuildIndex;
// sources registered later override earlier ones.
func (m *Manager) AddArchive(src Source) error {
	if src == nil {
		return fmt.Errorf("%w: nil source", ErrConfiguration)
	}

	m.mu.Lock()
	m.sources = append(m.sources, src)
	m.mu.Unlock()

	m.log.Debug("registered source", zap.String("source", src.Name()))
	return nil
}

// AddDirectory registers a directory tree, honoring strict mode.
func (m *Manager) AddDirectory(path string) error {
	src, err := NewDirSource(path, m.strict)
	if err != nil {
		return err
	}
	return m.AddArchive(src)
}

// Sources returns the registered sources in registration order.
func (m *Manager) Sources() []Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Source, len(m.sources))
	copy(out, m.sources)
	return out
}

// BuildIndex indexes every registered source in registration order so that
// the last source holding a name wins. Two raw names in one source that
// normalize to the same key are rejected.
func (m *Manager) BuildIndex() error {
	sources := m.Sources()

	idx := &index{entries: make(map[string]indexEntry)}
	for _, src := range sources {
		entries, err := src.Entries()
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrIndex, src.Name(), err)
		}

		seen := make(map[string]string, len(entries))
		overridden := 0
		for _, e := range entries {
			key := NormalizeName(e.Name)
			if key == "" {
				return fmt.Errorf("%w: %s: empty entry name %q", ErrIndex, src.Name(), e.Name)
			}
			if prev, dup := seen[key]; dup {
				return fmt.Errorf("%w: %s: entries %q and %q both resolve to %q",
					ErrIndex, src.Name(), prev, e.Name, key)
			}
			seen[key] = e.Name

			if _, ok := idx.entries[key]; ok {
				overridden++
			}
			idx.entries[key] = indexEntry{source: src, raw: e.Name, size: e.Size}
		}

		m.log.Debug("indexed source",
			zap.String("source", src.Name()),
			zap.Int("entries", len(entries)),
			zap.Int("overrides", overridden),
		)
	}

	if m.cache != nil {
		m.cache.Clear()
	}
	m.index.Store(idx)

	m.log.Info("vfs index built",
		zap.Int("sources", len(sources)),
		zap.Int("files", len(idx.entries)),
	)
	return nil
}

func (m *Manager) lookup(name string) (indexEntry, string, bool) {
	idx := m.index.Load()
	if idx == nil {
		return indexEntry{}, "", false
	}
	key := NormalizeName(name)
	e, ok := idx.entries[key]
	return e, key, ok
}

// Get opens the file registered under name.
func (m *Manager) Get(name string) (io.ReadSeekCloser, error) {
	e, key, ok := m.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if m.cache == nil {
		rc, err := e.source.Open(e.raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s in %s: %w", ErrOpen, name, e.source.Name(), err)
		}
		return rc, nil
	}

	if data, ok := m.cache.Get(key); ok {
		return NewBytesStream(data), nil
	}
	data, err := m.readSource(e)
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s: %w", ErrOpen, name, e.source.Name(), err)
	}
	m.cache.Set(key, data)
	return NewBytesStream(data), nil
}

// ReadFile returns the whole content of name.
func (m *Manager) ReadFile(name string) ([]byte, error) {
	rc, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (m *Manager) readSource(e indexEntry) ([]byte, error) {
	rc, err := e.source.Open(e.raw)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Exists reports whether name resolves.
func (m *Manager) Exists(name string) bool {
	_, _, ok := m.lookup(name)
	return ok
}

// Which returns the name of the source that name resolves to.
func (m *Manager) Which(name string) (string, bool) {
	e, _, ok := m.lookup(name)
	if !ok {
		return "", false
	}
	return e.source.Name(), true
}

// Stat returns the indexed entry for name with its normalized key.
func (m *Manager) Stat(name string) (Entry, bool) {
	e, key, ok := m.lookup(name)
	if !ok {
		return Entry{}, false
	}
	return Entry{Name: key, Size: e.size}, true
}

// List returns every indexed name, normalized and sorted.
func (m *Manager) List() []string {
	idx := m.index.Load()
	if idx == nil {
		return nil
	}
	names := make([]string, 0, len(idx.entries))
	for name := range idx.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CacheStats returns content cache hits and misses.
func (m *Manager) CacheStats() (hits, misses int) {
	if m.cache == nil {
		return 0, 0
	}
	return m.cache.Stats()
}

// Close closes every source that holds an open file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, src := range m.sources {
		if c, ok := src.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %s: %w", src.Name(), err))
			}
		}
	}
	m.sources = nil
	m.index.Store(nil)
	if m.cache != nil {
		m.cache.Clear()
	}
	return errors.Join(errs...)
}
