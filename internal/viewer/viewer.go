// Package viewer drives a built model: one render pass, then one update of
// every controller, per frame.
package viewer

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-scene/internal/anim"
	"github.com/Faultbox/midgard-scene/internal/scene"
)

// DefaultFPS is the frame rate used when Config.FPS is not set.
const DefaultFPS = 60

// Config contains frame driver options.
type Config struct {
	FPS    int
	Logger *zap.Logger

	// Debug starts the driver with the node dump enabled.
	Debug bool
	// DebugToggle flips the node dump while Run is looping.
	DebugToggle <-chan struct{}
}

// Stats summarizes the frames driven so far.
type Stats struct {
	Frames    int
	Drawn     int           // geometry nodes submitted by the last render pass
	Clock     float64       // accumulated animation time in seconds
	FrameTime time.Duration // average wall time spent per frame
}

// Driver is a headless render loop. It is not safe for concurrent use;
// the scene must not be mutated elsewhere while a frame runs.
type Driver struct {
	root        *scene.Node
	controllers []anim.Controller
	fps         int
	log         *zap.Logger
	debug       bool
	toggle      <-chan struct{}

	stats Stats
	busy  time.Duration
}

// New creates a driver over a built scene. controllers are updated in the
// given order every frame.
func New(root *scene.Node, controllers []anim.Controller, cfg Config) *Driver {
	d := &Driver{
		root:        root,
		controllers: controllers,
		fps:         cfg.FPS,
		log:         cfg.Logger,
		debug:       cfg.Debug,
		toggle:      cfg.DebugToggle,
	}
	if d.fps <= 0 {
		d.fps = DefaultFPS
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	return d
}

// Frame renders the current state, then advances every controller by dt.
// A negative or non-finite dt is rejected before anything runs.
func (d *Driver) Frame(dt float64) error {
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: frame delta %v", anim.ErrInvalidArgument, dt)
	}
	start := time.Now()

	if d.root != nil {
		d.stats.Drawn = d.root.UpdateWorld()
		if d.debug {
			d.dump()
		}
	}
	for i, c := range d.controllers {
		if err := c.Update(dt); err != nil {
			return fmt.Errorf("frame %d: controller %d: %w", d.stats.Frames, i, err)
		}
	}

	d.stats.Frames++
	d.stats.Clock += dt
	d.busy += time.Since(start)
	d.stats.FrameTime = d.busy / time.Duration(d.stats.Frames)
	return nil
}

// Advance runs frames with a fixed step of one frame period.
func (d *Driver) Advance(frames int) error {
	step := 1 / float64(d.fps)
	for i := 0; i < frames; i++ {
		if err := d.Frame(step); err != nil {
			return err
		}
	}
	return nil
}

// Run paces frames at the configured rate with wall-clock deltas until ctx
// is done or, when frames is positive, that many frames have run.
func (d *Driver) Run(ctx context.Context, frames int) (Stats, error) {
	ticker := time.NewTicker(time.Second / time.Duration(d.fps))
	defer ticker.Stop()

	d.log.Info("starting frame loop",
		zap.Int("fps", d.fps),
		zap.Int("controllers", len(d.controllers)),
		zap.Int("frames", frames),
	)

	last := time.Now()
	report := last
	reported := d.stats.Frames
	for frames <= 0 || d.stats.Frames < frames {
		select {
		case <-d.toggle:
			d.SetDebug(!d.debug)
		case <-ctx.Done():
			d.log.Info("frame loop stopped", zap.Int("frames", d.stats.Frames))
			return d.stats, ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if err := d.Frame(dt); err != nil {
				return d.stats, err
			}

			if now.Sub(report) >= time.Second {
				d.log.Debug("fps",
					zap.Int("count", d.stats.Frames-reported),
					zap.Int("drawn", d.stats.Drawn),
					zap.Duration("frame_time", d.stats.FrameTime),
				)
				report = now
				reported = d.stats.Frames
			}
		}
	}

	d.log.Info("frame loop finished",
		zap.Int("frames", d.stats.Frames),
		zap.Float64("clock", d.stats.Clock),
	)
	return d.stats, nil
}

// SetDebug turns the per-frame node dump on or off. The dump logs every
// node's world position and visibility after the render pass.
func (d *Driver) SetDebug(on bool) {
	if d.debug != on {
		d.log.Info("node dump", zap.Bool("enabled", on))
	}
	d.debug = on
}

// Debug reports whether the node dump is enabled.
func (d *Driver) Debug() bool {
	return d.debug
}

func (d *Driver) dump() {
	d.root.Walk(func(n *scene.Node) bool {
		pos := n.World.Translation().Array()
		d.log.Info("node",
			zap.Int("frame", d.stats.Frames),
			zap.String("path", n.Path()),
			zap.Stringer("kind", n.Kind),
			zap.Float32s("world", pos[:]),
			zap.Bool("visible", n.Visible),
		)
		return true
	})
}

// Stats returns the statistics so far.
func (d *Driver) Stats() Stats {
	return d.stats
}
