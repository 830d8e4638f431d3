// Package anim samples keyframe tracks and drives scene properties with
// them, one controller per animated property.
package anim

import (
	"errors"
	"fmt"
	gomath "math"
	"sort"

	"github.com/Faultbox/midgard-scene/pkg/math"
)

// ErrInvalidArgument reports misuse of a track or controller.
var ErrInvalidArgument = errors.New("invalid argument")

// Interp selects how values between two keys are computed.
type Interp int

const (
	// Hold keeps the previous key's value until the next key.
	Hold Interp = iota
	// Linear blends component-wise.
	Linear
	// Slerp blends rotations along the shorter arc.
	Slerp
)

func (i Interp) String() string {
	switch i {
	case Hold:
		return "hold"
	case Linear:
		return "linear"
	case Slerp:
		return "slerp"
	default:
		return fmt.Sprintf("Interp(%d)", int(i))
	}
}

// Cycle selects what happens when the clock leaves [Start, Stop].
type Cycle int

const (
	// Clamp holds the boundary value.
	Clamp Cycle = iota
	// Loop wraps back to Start.
	Loop
	// Reverse plays forward then backward.
	Reverse
)

func (c Cycle) String() string {
	switch c {
	case Clamp:
		return "clamp"
	case Loop:
		return "loop"
	case Reverse:
		return "reverse"
	default:
		return fmt.Sprintf("Cycle(%d)", int(c))
	}
}

// Key is a value at a point in time, in seconds.
type Key[T any] struct {
	Time  float32
	Value T
}

// LerpFunc blends a toward b by t in [0, 1].
type LerpFunc[T any] func(a, b T, t float32) T

// Track is a time-sorted list of keys with its playback settings.
// The controller clock maps to track time as clock*Frequency + Phase.
type Track[T any] struct {
	Keys      []Key[T]
	Interp    Interp
	Cycle     Cycle
	Start     float32
	Stop      float32
	Frequency float32
	Phase     float32

	lerp LerpFunc[T]
}

// NewTrack creates a track over keys, which must be sorted by time.
// Start and Stop default to the first and last key times. lerp may be nil
// for value types that can only be held.
func NewTrack[T any](keys []Key[T], interp Interp, cycle Cycle, lerp LerpFunc[T]) (*Track[T], error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: track has no keys", ErrInvalidArgument)
	}
	for i := 1; i < len(keys); i++ {
		if keys[i].Time < keys[i-1].Time {
			return nil, fmt.Errorf("%w: key %d at %v precedes key %d at %v",
				ErrInvalidArgument, i, keys[i].Time, i-1, keys[i-1].Time)
		}
	}
	if interp != Hold && lerp == nil {
		return nil, fmt.Errorf("%w: %s interpolation needs a blend function", ErrInvalidArgument, interp)
	}
	return &Track[T]{
		Keys:      keys,
		Interp:    interp,
		Cycle:     cycle,
		Start:     keys[0].Time,
		Stop:      keys[len(keys)-1].Time,
		Frequency: 1,
		lerp:      lerp,
	}, nil
}

// Duration returns Stop - Start.
func (t *Track[T]) Duration() float32 {
	return t.Stop - t.Start
}

// TrackTime maps a controller clock to a time inside [Start, Stop]
// according to the cycle policy.
func (t *Track[T]) TrackTime(clock float64) float64 {
	x := clock*float64(t.Frequency) + float64(t.Phase)
	start, stop := float64(t.Start), float64(t.Stop)
	span := stop - start

	if span <= 0 {
		return start
	}

	switch t.Cycle {
	case Loop:
		return start + positiveMod(x-start, span)
	case Reverse:
		m := positiveMod(x-start, 2*span)
		if m > span {
			m = 2*span - m
		}
		return start + m
	default:
		return gomath.Min(gomath.Max(x, start), stop)
	}
}

// Sample returns the track value at a controller clock.
func (t *Track[T]) Sample(clock float64) T {
	return t.At(t.TrackTime(clock))
}

// At returns the value at track time x. Times before the first key return
// the first value; times at or after the last key return the last value.
func (t *Track[T]) At(x float64) T {
	keys := t.Keys
	if x <= float64(keys[0].Time) {
		return keys[0].Value
	}
	last := len(keys) - 1
	if x >= float64(keys[last].Time) {
		return keys[last].Value
	}

	// first key strictly after x
	next := sort.Search(len(keys), func(i int) bool {
		return float64(keys[i].Time) > x
	})
	prev := next - 1

	if t.Interp == Hold || t.lerp == nil {
		return keys[prev].Value
	}
	span := float64(keys[next].Time - keys[prev].Time)
	if span <= 0 {
		return keys[next].Value
	}
	f := float32((x - float64(keys[prev].Time)) / span)
	return t.lerp(keys[prev].Value, keys[next].Value, f)
}

func positiveMod(x, m float64) float64 {
	r := gomath.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}

// LerpFloat blends two scalars.
func LerpFloat(a, b float32, t float32) float32 {
	return a + (b-a)*t
}

// LerpVec3 blends two vectors.
func LerpVec3(a, b math.Vec3, t float32) math.Vec3 {
	return a.Lerp(b, t)
}

// SlerpQuat blends two rotations.
func SlerpQuat(a, b math.Quat, t float32) math.Quat {
	return a.Slerp(b, t)
}
