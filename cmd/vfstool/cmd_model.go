package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-scene/internal/loader"
	"github.com/Faultbox/midgard-scene/internal/logger"
	"github.com/Faultbox/midgard-scene/internal/scene"
	"github.com/Faultbox/midgard-scene/internal/viewer"
)

func newTreeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tree <model>",
		Short: "Build a model and print its node hierarchy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.LoadModel(args[0], a.cfg.Viewer.Skeleton)
			if err != nil {
				return err
			}
			printTree(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newPlayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "play <model>",
		Short: "Animate a model for a number of frames and print the final pose",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.LoadModel(args[0], a.cfg.Viewer.Skeleton)
			if err != nil {
				return err
			}

			frames := a.cfg.Viewer.Frames
			if frames == 0 {
				frames = a.cfg.Viewer.FPS
			}
			driver := viewer.New(res.Root, res.Controllers, viewer.Config{
				FPS:    a.cfg.Viewer.FPS,
				Logger: logger.Named("viewer", zap.String("model", args[0])),
			})
			if err := driver.Advance(frames); err != nil {
				return err
			}
			// One more render pass so world transforms reflect the last update.
			res.Root.UpdateWorld()

			stats := driver.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Played %d frames (%.3fs) with %d controllers\n",
				stats.Frames, stats.Clock, len(res.Controllers))
			res.Root.Walk(func(n *scene.Node) bool {
				p := n.World.Translation()
				fmt.Fprintf(out, "  %-30s pos=(%.3f, %.3f, %.3f) visible=%v\n", n.Path(), p.X, p.Y, p.Z, n.Visible)
				return true
			})
			return nil
		},
	}
}

func printTree(out io.Writer, res *loader.Result) {
	depth := map[*scene.Node]int{}
	res.Root.Walk(func(n *scene.Node) bool {
		d := 0
		if n.Parent != nil {
			d = depth[n.Parent] + 1
		}
		depth[n] = d

		line := strings.Repeat("  ", d) + n.Name + " [" + n.Kind.String() + "]"
		if n.Mesh != nil {
			line += fmt.Sprintf(" tris=%d", len(n.Mesh.Triangles))
		}
		for _, m := range n.Materials {
			switch {
			case m.Placeholder:
				line += " material=" + m.Name + "(placeholder)"
			case m.Texture != nil:
				line += fmt.Sprintf(" material=%s(%dx%d)", m.Name, m.Texture.Width, m.Texture.Height)
			default:
				line += " material=" + m.Name
			}
		}
		fmt.Fprintln(out, line)
		return true
	})

	fmt.Fprintf(out, "\n%d nodes, %d controllers\n", res.Root.Count(), len(res.Controllers))
	for _, c := range res.Controllers {
		fmt.Fprintf(out, "  controller %s\n", c.Target())
	}
	if res.Partial() {
		fmt.Fprintf(out, "partial: %d records skipped\n", len(res.Skipped))
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintf(out, "warning: %s\n", d)
	}
}
