// Package session wires configuration, the virtual filesystem and the
// model loader together the way the command-line tools use them.
package session

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-scene/internal/config"
	"github.com/Faultbox/midgard-scene/internal/document"
	"github.com/Faultbox/midgard-scene/internal/loader"
	"github.com/Faultbox/midgard-scene/internal/vfs"
)

// Session is an indexed filesystem plus a model builder over it.
type Session struct {
	FS      *vfs.Manager
	Builder *loader.Builder

	log *zap.Logger
}

// Open resolves the configured archives against the data directories,
// registers the archives in order followed by the directories, and builds
// the index. Any failure is fatal to the session.
func Open(cfg *config.Config, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}

	fs := vfs.New(vfs.Config{
		Strict:     cfg.Data.Strict,
		CacheBytes: cfg.CacheBytes(),
		Logger:     log.Named("vfs"),
	})

	if err := register(fs, cfg, log); err != nil {
		return nil, errors.Join(err, fs.Close())
	}
	if err := fs.BuildIndex(); err != nil {
		return nil, errors.Join(err, fs.Close())
	}

	textureDir := cfg.Viewer.TextureDir
	if textureDir == "" {
		textureDir = "-"
	}
	return &Session{
		FS: fs,
		Builder: loader.New(fs, loader.Config{
			Logger:     log.Named("loader"),
			TextureDir: textureDir,
		}),
		log: log,
	}, nil
}

func register(fs *vfs.Manager, cfg *config.Config, log *zap.Logger) error {
	collections := vfs.NewCollections(cfg.Data.Dirs, cfg.Data.Strict)
	for _, name := range cfg.Data.Archives {
		path, err := collections.Resolve(name)
		if err != nil {
			return err
		}
		src, err := vfs.OpenArchive(path)
		if err != nil {
			return err
		}
		if err := fs.AddArchive(src); err != nil {
			return err
		}
		log.Info("adding archive", zap.String("path", path))
	}

	for _, dir := range cfg.Data.Dirs {
		if err := fs.AddDirectory(dir); err != nil {
			return err
		}
		log.Info("adding directory", zap.String("path", dir))
	}
	return nil
}

// LoadDocument reads and parses a model through the filesystem.
func (s *Session) LoadDocument(name string) (*document.Document, error) {
	rc, err := s.FS.Get(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return document.Load(rc, name)
}

// LoadModel loads and builds a model. Per-asset recoveries are logged and
// left in the result's diagnostics.
func (s *Session) LoadModel(name string, asSkeleton bool) (*loader.Result, error) {
	doc, err := s.LoadDocument(name)
	if err != nil {
		return nil, err
	}
	res, err := s.Builder.Build(doc, asSkeleton)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", name, err)
	}
	if res.Partial() {
		s.log.Warn("model loaded partially",
			zap.String("model", name),
			zap.Int("skipped", len(res.Skipped)),
		)
	}
	return res, nil
}

// Close releases every open archive.
func (s *Session) Close() error {
	return s.FS.Close()
}
