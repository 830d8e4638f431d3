// Package main is the model viewer harness: it loads one model through the
// configured archives and directories and animates it headlessly.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-scene/internal/config"
	"github.com/Faultbox/midgard-scene/internal/logger"
	"github.com/Faultbox/midgard-scene/internal/session"
	"github.com/Faultbox/midgard-scene/internal/viewer"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] <model>\n\n", os.Args[0])
	pflag.PrintDefaults()
}

func main() {
	// Parse CLI flags first
	flags := config.BindFlags(pflag.CommandLine)
	pflag.Usage = usage
	pflag.Parse()

	if pflag.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	model := pflag.Arg(0)

	// Load configuration
	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Midgard Scene Viewer ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if err := run(cfg, model); err != nil {
		logger.Error("viewer error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("viewer closed normally")
}

func run(cfg *config.Config, model string) error {
	s, err := session.Open(cfg, logger.Log)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.LoadModel(model, cfg.Viewer.Skeleton)
	if err != nil {
		return err
	}
	for _, d := range res.Diagnostics {
		logger.Warn("asset problem", zap.String("model", model), zap.Stringer("diagnostic", d))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	toggle, stopToggle := debugToggle()
	defer stopToggle()

	driver := viewer.New(res.Root, res.Controllers, viewer.Config{
		FPS:         cfg.Viewer.FPS,
		Logger:      logger.Named("viewer", zap.String("model", model)),
		Debug:       cfg.Viewer.DumpNodes,
		DebugToggle: toggle,
	})
	stats, err := driver.Run(ctx, cfg.Viewer.Frames)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	logger.Info("frame loop done",
		zap.Int("frames", stats.Frames),
		zap.Duration("avg_frame", stats.FrameTime),
		zap.Int("nodes", res.Root.Count()),
		zap.Int("controllers", len(res.Controllers)),
	)
	return err
}
