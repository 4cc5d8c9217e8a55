// Package geom provides the 2D transforms used when block insertions are
// expanded in place.
package geom

import "math"

// Affine maps (x, y) to (A*x + C*y + Tx, B*x + D*y + Ty). The columns
// (A, B) and (C, D) are the images of the local x and y unit vectors.
type Affine struct {
	A, B, C, D float64
	Tx, Ty     float64
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{A: 1, D: 1}
}

// Insert returns T(x, y) · R(rotation) · S(sx, sy), the placement of a
// block insertion. Rotation is in radians.
func Insert(x, y, rotation, sx, sy float64) Affine {
	sin, cos := math.Sincos(rotation)
	return Affine{
		A: cos * sx, B: sin * sx,
		C: -sin * sy, D: cos * sy,
		Tx: x, Ty: y,
	}
}

// Translate returns a pure translation.
func Translate(x, y float64) Affine {
	return Affine{A: 1, D: 1, Tx: x, Ty: y}
}

// Then returns m ∘ n: the transform that applies n first and m second.
// Expanding a nested insertion composes parent.Then(child).
func (m Affine) Then(n Affine) Affine {
	return Affine{
		A:  m.A*n.A + m.C*n.B,
		B:  m.B*n.A + m.D*n.B,
		C:  m.A*n.C + m.C*n.D,
		D:  m.B*n.C + m.D*n.D,
		Tx: m.A*n.Tx + m.C*n.Ty + m.Tx,
		Ty: m.B*n.Tx + m.D*n.Ty + m.Ty,
	}
}

// Apply maps a point.
func (m Affine) Apply(x, y float64) (float64, float64) {
	return m.A*x + m.C*y + m.Tx, m.B*x + m.D*y + m.Ty
}

// ApplyVector maps a direction, ignoring translation.
func (m Affine) ApplyVector(x, y float64) (float64, float64) {
	return m.A*x + m.C*y, m.B*x + m.D*y
}

// Det is the determinant of the linear part. It is negative for
// mirroring transforms.
func (m Affine) Det() float64 {
	return m.A*m.D - m.B*m.C
}

// IsIdentity reports whether m is exactly the identity.
func (m Affine) IsIdentity() bool {
	return m == Identity()
}

// Rotation is the angle of the transformed x axis, in radians.
func (m Affine) Rotation() float64 {
	return math.Atan2(m.B, m.A)
}

// Scales returns axis scale factors consistent with Rotation. The y scale
// carries the sign of the determinant, so a mirror survives the round
// trip through Insert. Shear, which Insert cannot express, is dropped.
func (m Affine) Scales() (sx, sy float64) {
	sx = math.Hypot(m.A, m.B)
	if sx == 0 {
		return 0, math.Hypot(m.C, m.D)
	}
	return sx, m.Det() / sx
}

// MeanScale is the average length of the transformed unit axes.
func (m Affine) MeanScale() float64 {
	return (math.Hypot(m.A, m.B) + math.Hypot(m.C, m.D)) / 2
}

// NormalizeRadians maps a into [0, 2π).
func NormalizeRadians(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	if a >= 2*math.Pi {
		a = 0
	}
	return a
}

// NormalizeDegrees maps a into [0, 360).
func NormalizeDegrees(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}
