// vfstool inspects the merged asset namespace and the models inside it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Faultbox/midgard-scene/internal/config"
	"github.com/Faultbox/midgard-scene/internal/logger"
	"github.com/Faultbox/midgard-scene/internal/session"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries the configuration shared by every subcommand.
type app struct {
	flags *config.Flags
	cfg   *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "vfstool",
		Short:         "Inspect archives, directories and models through the virtual filesystem",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	a.flags = config.BindFlags(root.PersistentFlags())

	root.AddCommand(newLsCmd(a))
	root.AddCommand(newWhichCmd(a))
	root.AddCommand(newCatCmd(a))
	root.AddCommand(newExtractCmd(a))
	root.AddCommand(newInfoCmd())
	root.AddCommand(newPackCmd())
	root.AddCommand(newTreeCmd(a))
	root.AddCommand(newPlayCmd(a))
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.flags)
	if err != nil {
		return err
	}
	a.cfg = cfg

	// Logs go to the file, and to stderr only when debugging, so that
	// command output stays clean.
	opts := logger.Options{Level: cfg.Logging.Level}
	if cfg.Logging.LogFile != "" {
		opts.File = logger.DefaultFileConfig(cfg.Logging.LogFile)
	}
	if cfg.Logging.Level == "debug" {
		opts.Console = os.Stderr
	}
	return logger.Setup(opts)
}

func (a *app) open() (*session.Session, error) {
	return session.Open(a.cfg, logger.Log)
}
