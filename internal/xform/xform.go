// Package xform is the small 2D affine matrix library shared by the CPU and
// GPU compositor backends (spec §4.4's "Affine transform"), grounded in the
// teacher's willow/transform.go — same [a,b,c,d,tx,ty] layout and the same
// multiply/invert/apply operations, lifted out so both backends compose
// transforms identically instead of each re-deriving the algebra.
package xform

import "math"

// Affine is a 2D affine matrix [a, b, c, d, tx, ty]:
//
//	| a  c  tx |
//	| b  d  ty |
//	| 0  0   1 |
type Affine [6]float64

// Identity is the identity transform.
var Identity = Affine{1, 0, 0, 1, 0, 0}

// Translate returns a pure translation matrix.
func Translate(x, y float64) Affine {
	return Affine{1, 0, 0, 1, x, y}
}

// Scale returns a pure scale matrix.
func Scale(sx, sy float64) Affine {
	return Affine{sx, 0, 0, sy, 0, 0}
}

// Rotate returns a pure rotation matrix for theta radians, clockwise in a
// Y-down coordinate system (spec §9 "Rotation sign").
func Rotate(theta float64) Affine {
	sin, cos := math.Sincos(theta)
	return Affine{cos, sin, -sin, cos, 0, 0}
}

// Multiply composes parent then child: result = parent * child, i.e. child
// is applied first.
func Multiply(parent, child Affine) Affine {
	return Affine{
		parent[0]*child[0] + parent[2]*child[1],
		parent[1]*child[0] + parent[3]*child[1],
		parent[0]*child[2] + parent[2]*child[3],
		parent[1]*child[2] + parent[3]*child[3],
		parent[0]*child[4] + parent[2]*child[5] + parent[4],
		parent[1]*child[4] + parent[3]*child[5] + parent[5],
	}
}

// Invert returns the inverse of m, or Identity if m is singular.
func Invert(m Affine) Affine {
	det := m[0]*m[3] - m[2]*m[1]
	if det > -1e-12 && det < 1e-12 {
		return Identity
	}
	invDet := 1.0 / det
	a := m[3] * invDet
	b := -m[1] * invDet
	c := -m[2] * invDet
	d := m[0] * invDet
	return Affine{
		a, b, c, d,
		-(a*m[4] + c*m[5]),
		-(b*m[4] + d*m[5]),
	}
}

// Apply transforms the point (x, y) by m.
func Apply(m Affine, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// ForObject composes the object transform order required by spec §4.4:
// translate(-ox,-oy) -> scale -> rotate -> translate(px,py).
func ForObject(px, py, sx, sy, theta, ox, oy float64) Affine {
	return Multiply(
		Translate(px, py),
		Multiply(Rotate(theta), Multiply(Scale(sx, sy), Translate(-ox, -oy))),
	)
}
