package anim

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/midgard-scene/internal/scene"
	"github.com/Faultbox/midgard-scene/pkg/math"
)

// Controller advances one animated property.
type Controller interface {
	// Update advances the clock by dt seconds and writes the sampled value
	// to the bound target. dt must be finite and non-negative.
	Update(dt float64) error
	// Time returns the accumulated clock.
	Time() float64
	// Target describes the bound property for diagnostics.
	Target() string
}

// Keyframe drives a target through a Track.
type Keyframe[T any] struct {
	track  *Track[T]
	set    func(T)
	target string
	clock  float64
}

// NewKeyframe binds track to set. target names the property in diagnostics.
func NewKeyframe[T any](track *Track[T], target string, set func(T)) *Keyframe[T] {
	return &Keyframe[T]{track: track, set: set, target: target}
}

// Update implements Controller.
func (k *Keyframe[T]) Update(dt float64) error {
	if dt < 0 || gomath.IsNaN(dt) || gomath.IsInf(dt, 0) {
		return fmt.Errorf("%w: %s: delta time %v", ErrInvalidArgument, k.target, dt)
	}
	k.clock += dt
	k.set(k.track.Sample(k.clock))
	return nil
}

// Time implements Controller.
func (k *Keyframe[T]) Time() float64 { return k.clock }

// Target implements Controller.
func (k *Keyframe[T]) Target() string { return k.target }

// Track returns the sampled track.
func (k *Keyframe[T]) Track() *Track[T] { return k.track }

// NewNodeTranslation animates a node's translation.
func NewNodeTranslation(n *scene.Node, track *Track[math.Vec3]) *Keyframe[math.Vec3] {
	return NewKeyframe(track, n.Name+".translation", func(v math.Vec3) { n.Translation = v })
}

// NewNodeRotation animates a node's rotation.
func NewNodeRotation(n *scene.Node, track *Track[math.Quat]) *Keyframe[math.Quat] {
	return NewKeyframe(track, n.Name+".rotation", func(q math.Quat) { n.Rotation = q })
}

// NewNodeScale animates a node's scale.
func NewNodeScale(n *scene.Node, track *Track[math.Vec3]) *Keyframe[math.Vec3] {
	return NewKeyframe(track, n.Name+".scale", func(v math.Vec3) { n.Scale = v })
}

// NewNodeVisibility toggles a node's visibility.
func NewNodeVisibility(n *scene.Node, track *Track[bool]) *Keyframe[bool] {
	return NewKeyframe(track, n.Name+".visibility", func(v bool) { n.Visible = v })
}

// NewMaterialAlpha animates a material's opacity.
func NewMaterialAlpha(m *scene.Material, track *Track[float32]) *Keyframe[float32] {
	return NewKeyframe(track, m.Name+".alpha", func(v float32) { m.Alpha = v })
}

// NewMaterialDiffuse animates a material's diffuse color.
func NewMaterialDiffuse(m *scene.Material, track *Track[math.Vec3]) *Keyframe[math.Vec3] {
	return NewKeyframe(track, m.Name+".diffuse", func(v math.Vec3) { m.Diffuse = v })
}
