package config

import "github.com/spf13/pflag"

// Flags holds command-line overrides bound to a flag set.
type Flags struct {
	set *pflag.FlagSet

	config     string
	data       []string
	archives   []string
	strict     bool
	debug      bool
	logFile    string
	skeleton   bool
	frames     int
	fps        int
	textureDir string
	dumpNodes  bool
}

// BindFlags registers the configuration flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{set: fs}
	fs.StringVar(&f.config, "config", "", "Path to config file (.yaml or .toml)")
	fs.StringArrayVar(&f.data, "data", nil, "Data directory (repeatable, later wins)")
	fs.StringArrayVar(&f.archives, "fallback-archive", nil, "Archive to register (repeatable, later wins)")
	fs.BoolVar(&f.strict, "fs-strict", false, "Require exact on-disk case for data paths")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.logFile, "log-file", "", "Also write logs to this file")
	fs.BoolVar(&f.skeleton, "skeleton", false, "Build models in skeleton mode")
	fs.IntVar(&f.frames, "frames", 0, "Stop after this many frames")
	fs.IntVar(&f.fps, "fps", 0, "Target frame rate")
	fs.StringVar(&f.textureDir, "texture-dir", "", "Prefix tried for bare texture names")
	fs.BoolVar(&f.dumpNodes, "dump-nodes", false, "Log every node's world transform each frame")
	return f
}

// ConfigPath returns the explicit config path if provided via --config flag.
func (f *Flags) ConfigPath() string {
	if f == nil {
		return ""
	}
	return f.config
}

// apply applies CLI flag overrides to the config. Only flags given on the
// command line take effect.
func (f *Flags) apply(cfg *Config) {
	if f == nil || f.set == nil {
		return
	}
	changed := f.set.Changed

	if changed("data") {
		cfg.Data.Dirs = f.data
	}
	if changed("fallback-archive") {
		cfg.Data.Archives = f.archives
	}
	if changed("fs-strict") {
		cfg.Data.Strict = f.strict
	}
	if f.debug {
		cfg.Logging.Level = "debug"
	}
	if changed("log-file") {
		cfg.Logging.LogFile = f.logFile
	}
	if changed("skeleton") {
		cfg.Viewer.Skeleton = f.skeleton
	}
	if changed("frames") {
		cfg.Viewer.Frames = f.frames
	}
	if f.fps > 0 {
		cfg.Viewer.FPS = f.fps
	}
	if changed("texture-dir") {
		cfg.Viewer.TextureDir = f.textureDir
	}
	if changed("dump-nodes") {
		cfg.Viewer.DumpNodes = f.dumpNodes
	}
}
