package math

import (
	"math"
	"testing"
)

const eps = 0.0001

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < eps
}

func TestQuatIdentity(t *testing.T) {
	q := QuatIdentity()
	if q.X != 0 || q.Y != 0 || q.Z != 0 || q.W != 1 {
		t.Errorf("Identity quaternion should be (0,0,0,1), got (%v,%v,%v,%v)", q.X, q.Y, q.Z, q.W)
	}
}

func TestQuatNormalize(t *testing.T) {
	n := Quat{X: 1, Y: 2, Z: 3, W: 4}.Normalize()
	if !near(n.Dot(n), 1) {
		t.Errorf("normalized quaternion should have unit length, got %v", n.Dot(n))
	}
	if z := (Quat{}).Normalize(); z != QuatIdentity() {
		t.Errorf("zero quaternion should normalize to identity, got %+v", z)
	}
}

func TestQuatSlerp(t *testing.T) {
	q1 := QuatIdentity()
	q2 := QuatFromAxisAngle(Vec3{Y: 1}, math.Pi/2)

	if r := q1.Slerp(q2, 0); !near(r.W, q1.W) {
		t.Errorf("Slerp at t=0 should equal q1, got %+v", r)
	}
	if r := q1.Slerp(q2, 1); !near(r.W, q2.W) || !near(r.Y, q2.Y) {
		t.Errorf("Slerp at t=1 should equal q2, got %+v", r)
	}

	// Halfway through a 90 degree turn is 45 degrees.
	half := q1.Slerp(q2, 0.5)
	expectedW := float32(math.Cos(math.Pi / 8))
	if math.Abs(float64(half.W-expectedW)) > 0.001 {
		t.Errorf("Slerp at t=0.5: expected W ~%v, got %v", expectedW, half.W)
	}
}

func TestQuatSlerp_ShortestPath(t *testing.T) {
	q1 := QuatIdentity()
	neg := Quat{W: -1}
	r := q1.Slerp(neg, 0.5)
	if !near(float32(math.Abs(float64(r.W))), 1) {
		t.Errorf("q and -q are the same rotation, expected identity, got %+v", r)
	}
}

func TestQuatMat4RoundTrip(t *testing.T) {
	tests := []Quat{
		QuatIdentity(),
		QuatFromAxisAngle(Vec3{X: 1}, 0.7),
		QuatFromAxisAngle(Vec3{Y: 1}, 2.5),
		QuatFromAxisAngle(Vec3{X: 1, Y: 1, Z: 1}, -1.2),
		QuatFromAxisAngle(Vec3{Z: 1}, math.Pi),
	}
	for _, q := range tests {
		got := QuatFromMat4(q.ToMat4())
		if math.Abs(float64(got.Dot(q))) < 1-eps {
			t.Errorf("round trip of %+v gave %+v", q, got)
		}
	}
}

func TestCompose(t *testing.T) {
	m := Compose(Vec3{X: 10}, QuatFromAxisAngle(Vec3{Z: 1}, math.Pi/2), Vec3{X: 2, Y: 2, Z: 2})
	p := m.TransformPoint(Vec3{X: 1})

	// Scale to (2,0,0), rotate to (0,2,0), translate to (10,2,0).
	if !near(p.X, 10) || !near(p.Y, 2) || !near(p.Z, 0) {
		t.Errorf("expected (10,2,0), got %+v", p)
	}
	if m.Translation() != (Vec3{X: 10}) {
		t.Errorf("expected translation (10,0,0), got %+v", m.Translation())
	}
}

func TestMat4Mul_Identity(t *testing.T) {
	m := Compose(Vec3{1, 2, 3}, QuatFromAxisAngle(Vec3{Y: 1}, 0.3), One())
	if got := Identity().Mul(m); got != m {
		t.Errorf("I*M should equal M")
	}
	if got := m.Mul(Identity()); got != m {
		t.Errorf("M*I should equal M")
	}
}

func TestVec3Lerp(t *testing.T) {
	a := Vec3{0, 0, 0}
	b := Vec3{10, -10, 4}
	got := a.Lerp(b, 0.5)
	if got != (Vec3{5, -5, 2}) {
		t.Errorf("expected (5,-5,2), got %+v", got)
	}
}
