// Package config handles viewer configuration loading and management.
package config

import (
	"errors"
	"fmt"
)

// ErrInvalid reports a configuration value outside its allowed range.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all settings.
type Config struct {
	Data    DataConfig    `yaml:"data" toml:"data"`
	Viewer  ViewerConfig  `yaml:"viewer" toml:"viewer"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// DataConfig describes where assets come from. Archives are registered
// first, in order, then directories, so loose files override packed ones.
type DataConfig struct {
	Dirs     []string `yaml:"dirs" toml:"dirs"`         // Data directories, later wins
	Archives []string `yaml:"archives" toml:"archives"` // Archive names resolved against Dirs
	Strict   bool     `yaml:"strict" toml:"strict"`     // Require exact on-disk case
	CacheMB  int      `yaml:"cache_mb" toml:"cache_mb"` // Content cache size, 0 disables
}

// ViewerConfig holds model viewer settings.
type ViewerConfig struct {
	FPS        int    `yaml:"fps" toml:"fps"`
	Frames     int    `yaml:"frames" toml:"frames"` // 0 runs until interrupted
	Skeleton   bool   `yaml:"skeleton" toml:"skeleton"`
	TextureDir string `yaml:"texture_dir" toml:"texture_dir"`
	DumpNodes  bool   `yaml:"dump_nodes" toml:"dump_nodes"` // Log node transforms every frame
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	LogFile string `yaml:"log_file" toml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Dirs:     []string{"."},
			Archives: []string{"data.grf"},
			Strict:   false,
			CacheMB:  64,
		},
		Viewer: ViewerConfig{
			FPS:        60,
			Frames:     0,
			Skeleton:   false,
			TextureDir: "data/texture/",
			DumpNodes:  false,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Viewer.FPS <= 0:
		return fmt.Errorf("%w: viewer.fps must be positive, got %d", ErrInvalid, c.Viewer.FPS)
	case c.Viewer.Frames < 0:
		return fmt.Errorf("%w: viewer.frames must not be negative, got %d", ErrInvalid, c.Viewer.Frames)
	case c.Data.CacheMB < 0:
		return fmt.Errorf("%w: data.cache_mb must not be negative, got %d", ErrInvalid, c.Data.CacheMB)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown logging.level %q", ErrInvalid, c.Logging.Level)
	}
	return nil
}

// CacheBytes returns the content cache size in bytes.
func (c *Config) CacheBytes() int64 {
	return int64(c.Data.CacheMB) << 20
}
