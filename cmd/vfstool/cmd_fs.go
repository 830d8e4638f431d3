package main

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Faultbox/midgard-scene/internal/vfs"
)

// matchName reports whether a normalized name matches pattern: a glob when
// it contains glob characters, a substring otherwise.
func matchName(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	pattern = vfs.NormalizeName(pattern)
	if strings.ContainsAny(pattern, "*?[") {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
		ok, _ := path.Match(pattern, path.Base(name))
		return ok
	}
	return strings.Contains(name, pattern)
}

func newLsCmd(a *app) *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "ls [pattern]",
		Short: "List indexed files (optional glob or substring)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}

			out := cmd.OutOrStdout()
			count := 0
			for _, name := range s.FS.List() {
				if !matchName(pattern, name) {
					continue
				}
				count++
				if !long {
					fmt.Fprintln(out, name)
					continue
				}
				e, _ := s.FS.Stat(name)
				src, _ := s.FS.Which(name)
				fmt.Fprintf(out, "%10d  %-50s  %s\n", e.Size, name, src)
			}
			if long {
				fmt.Fprintf(out, "\n%d files\n", count)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "Show size and source")
	return cmd
}

func newWhichCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "which <name>",
		Short: "Show which source a name resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			src, ok := s.FS.Which(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", vfs.ErrNotFound, args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), src)
			return nil
		},
	}
}

func newCatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <name>",
		Short: "Write a file's content to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			rc, err := s.FS.Get(args[0])
			if err != nil {
				return err
			}
			defer rc.Close()

			_, err = io.Copy(cmd.OutOrStdout(), rc)
			return err
		},
	}
}

func newExtractCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <pattern> <output>",
		Short: "Extract matching files into a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			outDir := args[1]
			extracted := 0
			for _, name := range s.FS.List() {
				if !matchName(args[0], name) {
					continue
				}
				data, err := s.FS.ReadFile(name)
				if err != nil {
					return err
				}
				dst := filepath.Join(outDir, filepath.FromSlash(name))
				if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
					return err
				}
				if err := os.WriteFile(dst, data, 0644); err != nil {
					return err
				}
				extracted++
			}
			if extracted == 0 {
				return fmt.Errorf("%w: nothing matches %s", vfs.ErrNotFound, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d files to %s\n", extracted, outDir)
			return nil
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <archive>",
		Short: "Show archive contents by extension",
		Args:  cobra.ExactArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := vfs.OpenArchive(args[0])
			if err != nil {
				return err
			}
			if c, ok := src.(io.Closer); ok {
				defer c.Close()
			}

			entries, err := src.Entries()
			if err != nil {
				return err
			}

			// Count by extension
			extCount := make(map[string]int)
			var totalSize int64
			for _, e := range entries {
				ext := strings.ToLower(path.Ext(vfs.NormalizeName(e.Name)))
				if ext == "" {
					ext = "(none)"
				}
				extCount[ext]++
				totalSize += e.Size
			}

			exts := make([]string, 0, len(extCount))
			for ext := range extCount {
				exts = append(exts, ext)
			}
			sort.Slice(exts, func(i, j int) bool {
				if extCount[exts[i]] != extCount[exts[j]] {
					return extCount[exts[i]] > extCount[exts[j]]
				}
				return exts[i] < exts[j]
			})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Archive: %s\n", args[0])
			fmt.Fprintf(out, "Files: %d\n", len(entries))
			fmt.Fprintf(out, "Total size: %.2f MB\n\n", float64(totalSize)/1024/1024)
			fmt.Fprintln(out, "By extension:")
			for _, ext := range exts {
				fmt.Fprintf(out, "  %-8s %d\n", ext, extCount[ext])
			}
			return nil
		},
	}
}
