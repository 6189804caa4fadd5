package xform

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func assertNear(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > epsilon {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestIdentityApply(t *testing.T) {
	x, y := Apply(Identity, 3, 4)
	assertNear(t, "x", x, 3)
	assertNear(t, "y", y, 4)
}

func TestInvertRoundTrip(t *testing.T) {
	m := ForObject(100, 50, 2, 0.5, math.Pi/6, 10, 5)
	inv := Invert(m)
	x, y := Apply(m, 7, 9)
	bx, by := Apply(inv, x, y)
	assertNear(t, "x", bx, 7)
	assertNear(t, "y", by, 9)
}

func TestRotate90(t *testing.T) {
	m := Rotate(math.Pi / 2)
	x, y := Apply(m, 1, 0)
	assertNear(t, "x", x, 0)
	assertNear(t, "y", y, 1)
}

func TestInvertSingularReturnsIdentity(t *testing.T) {
	got := Invert(Scale(0, 0))
	if got != Identity {
		t.Errorf("Invert(singular) = %v, want Identity", got)
	}
}
