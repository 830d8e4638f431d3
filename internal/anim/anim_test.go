package anim

import (
	"errors"
	gomath "math"
	"testing"

	"github.com/Faultbox/midgard-scene/internal/scene"
	"github.com/Faultbox/midgard-scene/pkg/math"
)

func near(a, b float32) bool {
	return gomath.Abs(float64(a-b)) < 1e-4
}

func zeroToTen(t *testing.T, cycle Cycle) *Track[float32] {
	t.Helper()
	track, err := NewTrack([]Key[float32]{{0, 0}, {1, 10}}, Linear, cycle, LerpFloat)
	if err != nil {
		t.Fatalf("NewTrack failed: %v", err)
	}
	return track
}

func TestLinearClamp(t *testing.T) {
	mat := &scene.Material{Name: "glass"}
	c := NewMaterialAlpha(mat, zeroToTen(t, Clamp))

	if err := c.Update(0.5); err != nil {
		t.Fatal(err)
	}
	if mat.Alpha != 5 {
		t.Errorf("after 0.5s alpha = %v, want 5", mat.Alpha)
	}

	if err := c.Update(1.0); err != nil {
		t.Fatal(err)
	}
	if mat.Alpha != 10 {
		t.Errorf("past the last key alpha = %v, want exactly 10", mat.Alpha)
	}
	if c.Time() != 1.5 {
		t.Errorf("clock = %v, want 1.5", c.Time())
	}
}

func TestLinearLoop(t *testing.T) {
	tests := []struct {
		clock float64
		want  float32
	}{
		{0.25, 2.5},
		{1.25, 2.5},
		{2.75, 7.5},
		{3.0, 0},
	}

	for _, tt := range tests {
		mat := &scene.Material{}
		c := NewMaterialAlpha(mat, zeroToTen(t, Loop))
		if err := c.Update(tt.clock); err != nil {
			t.Fatal(err)
		}
		if !near(mat.Alpha, tt.want) {
			t.Errorf("clock %v: alpha = %v, want %v", tt.clock, mat.Alpha, tt.want)
		}
	}
}

func TestReverse(t *testing.T) {
	track := zeroToTen(t, Reverse)
	tests := []struct {
		clock float64
		want  float32
	}{
		{0.5, 5},
		{1.0, 10},
		{1.25, 7.5},
		{2.0, 0},
		{2.5, 5},
	}
	for _, tt := range tests {
		if got := track.Sample(tt.clock); !near(got, tt.want) {
			t.Errorf("Sample(%v) = %v, want %v", tt.clock, got, tt.want)
		}
	}
}

func TestHold(t *testing.T) {
	track, err := NewTrack([]Key[float32]{{0, 1}, {1, 2}, {2, 3}}, Hold, Clamp, nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		time float64
		want float32
	}{
		{-1, 1},
		{0.99, 1},
		{1.0, 2},
		{1.5, 2},
		{5, 3},
	}
	for _, tt := range tests {
		if got := track.At(tt.time); got != tt.want {
			t.Errorf("At(%v) = %v, want %v", tt.time, got, tt.want)
		}
	}
}

func TestFrequencyPhase(t *testing.T) {
	track := zeroToTen(t, Clamp)
	track.Frequency = 2
	if got := track.Sample(0.25); got != 5 {
		t.Errorf("double speed at 0.25s = %v, want 5", got)
	}
	track.Frequency = 1
	track.Phase = 0.5
	if got := track.Sample(0.25); !near(got, 7.5) {
		t.Errorf("phase-shifted sample = %v, want 7.5", got)
	}
}

func TestUpdate_InvalidDelta(t *testing.T) {
	node := scene.NewNode("door", scene.Transform)
	track, err := NewTrack([]Key[math.Vec3]{{0, math.Vec3{}}, {1, math.Vec3{X: 4}}}, Linear, Clamp, LerpVec3)
	if err != nil {
		t.Fatal(err)
	}
	c := NewNodeTranslation(node, track)
	c.Update(0.5)

	for _, dt := range []float64{-0.1, gomath.NaN(), gomath.Inf(1)} {
		err := c.Update(dt)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Update(%v): expected ErrInvalidArgument, got %v", dt, err)
		}
	}
	if c.Time() != 0.5 {
		t.Errorf("rejected updates must not move the clock, got %v", c.Time())
	}
	if node.Translation.X != 2 {
		t.Errorf("rejected updates must not touch the target, got %+v", node.Translation)
	}
}

func TestSlerpRotation(t *testing.T) {
	node := scene.NewNode("lid", scene.Geometry)
	quarter := math.QuatFromAxisAngle(math.Vec3{X: 1}, gomath.Pi/2)
	track, err := NewTrack([]Key[math.Quat]{{0, math.QuatIdentity()}, {1, quarter}}, Slerp, Clamp, SlerpQuat)
	if err != nil {
		t.Fatal(err)
	}
	c := NewNodeRotation(node, track)
	if err := c.Update(0.5); err != nil {
		t.Fatal(err)
	}

	want := math.QuatFromAxisAngle(math.Vec3{X: 1}, gomath.Pi/4)
	got := node.Rotation
	if !near(got.X, want.X) || !near(got.W, want.W) {
		t.Errorf("halfway rotation = %+v, want %+v", got, want)
	}
	if c.Target() != "lid.rotation" {
		t.Errorf("Target = %s", c.Target())
	}
}

func TestVisibilityAndScale(t *testing.T) {
	node := scene.NewNode("spark", scene.Geometry)

	vis, err := NewTrack([]Key[bool]{{0, true}, {0.5, false}}, Hold, Clamp, nil)
	if err != nil {
		t.Fatal(err)
	}
	scale, err := NewTrack([]Key[math.Vec3]{{0, math.One()}, {1, math.Vec3{X: 3, Y: 3, Z: 3}}}, Linear, Clamp, LerpVec3)
	if err != nil {
		t.Fatal(err)
	}

	controllers := []Controller{NewNodeVisibility(node, vis), NewNodeScale(node, scale)}
	for _, c := range controllers {
		if err := c.Update(0.75); err != nil {
			t.Fatal(err)
		}
	}
	if node.Visible {
		t.Error("node should be hidden after 0.5s")
	}
	if !near(node.Scale.X, 2.5) {
		t.Errorf("scale = %+v, want 2.5", node.Scale)
	}
}

func TestMaterialDiffuse(t *testing.T) {
	mat := &scene.Material{Name: "flame"}
	track, err := NewTrack([]Key[math.Vec3]{{0, math.Vec3{X: 1}}, {2, math.Vec3{Z: 1}}}, Linear, Loop, LerpVec3)
	if err != nil {
		t.Fatal(err)
	}
	c := NewMaterialDiffuse(mat, track)
	c.Update(1)
	if !near(mat.Diffuse.X, 0.5) || !near(mat.Diffuse.Z, 0.5) {
		t.Errorf("diffuse = %+v", mat.Diffuse)
	}
}

func TestNewTrack_Errors(t *testing.T) {
	tests := []struct {
		name   string
		keys   []Key[float32]
		interp Interp
		lerp   LerpFunc[float32]
	}{
		{"no keys", nil, Linear, LerpFloat},
		{"unsorted", []Key[float32]{{1, 0}, {0, 1}}, Linear, LerpFloat},
		{"linear without blend", []Key[float32]{{0, 0}, {1, 1}}, Linear, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTrack(tt.keys, tt.interp, Clamp, tt.lerp); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestSingleKeyTrack(t *testing.T) {
	track, err := NewTrack([]Key[float32]{{0.5, 7}}, Linear, Loop, LerpFloat)
	if err != nil {
		t.Fatal(err)
	}
	for _, clock := range []float64{0, 0.5, 3} {
		if got := track.Sample(clock); got != 7 {
			t.Errorf("Sample(%v) = %v, want 7", clock, got)
		}
	}
}
