package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Faultbox/midgard-scene/pkg/grf"
)

func newPackCmd() *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "pack <out.grf> <dir>",
		Short: "Pack a directory tree into a GRF archive",
		Args:  cobra.ExactArgs(2),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := packDir(args[0], args[1], prefix)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Packed %d files into %s\n", n, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Path prepended to every entry, e.g. data")
	return cmd
}

// packDir writes every regular file below dir into a new archive at out.
func packDir(out, dir, prefix string) (int, error) {
	w, err := grf.Create(out)
	if err != nil {
		return 0, err
	}

	count := 0
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		name := filepath.ToSlash(rel)
		if prefix != "" {
			name = strings.TrimSuffix(filepath.ToSlash(prefix), "/") + "/" + name
		}
		if err := w.Add(name, data); err != nil {
			return fmt.Errorf("adding %s: %w", name, err)
		}
		count++
		return nil
	})
	if err != nil {
		w.Close()
		return 0, err
	}
	return count, w.Close()
}
