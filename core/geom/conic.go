package geom

import "math"

// circleTolerance is how close the axis ratio must be to 1 for a
// transformed conic to be reported as circular.
const circleTolerance = 1e-9

// Conic is an elliptical arc
//
//	P(t) = C + U·cos t + V·sin t,  t ∈ [Start, Start+Sweep]
//
// with U = Radius·(cos Tilt, sin Tilt) and V = Radius·Flatness·(−sin Tilt,
// cos Tilt). A circle has Flatness 1, and then Tilt only shifts the
// parameter origin.
type Conic struct {
	CenterX, CenterY float64
	Radius           float64
	Flatness         float64
	Tilt             float64
	Start            float64
	Sweep            float64
}

// axes returns the conjugate semi-diameters U and V.
func (c Conic) axes() (ux, uy, vx, vy float64) {
	sin, cos := math.Sincos(c.Tilt)
	return c.Radius * cos, c.Radius * sin, -c.Radius * c.Flatness * sin, c.Radius * c.Flatness * cos
}

// At returns the point at parameter t.
func (c Conic) At(t float64) (float64, float64) {
	ux, uy, vx, vy := c.axes()
	sin, cos := math.Sincos(t)
	return c.CenterX + ux*cos + vx*sin, c.CenterY + uy*cos + vy*sin
}

// IsCircular reports whether the axis ratio is 1.
func (c Conic) IsCircular() bool {
	return c.Flatness == 1
}

// TransformConic maps c through m exactly. The image of an ellipse under
// an affine map is an ellipse; its principal axes are found by rotating
// the image conjugate diameters U', V' by the parameter t0 with
//
//	tan 2t0 = 2·U'·V' / (|U'|² − |V'|²).
//
// The result always has Flatness <= 1 and a non-negative sweep of the same
// magnitude. Results within rounding of a circle come back with Flatness
// exactly 1 and Tilt 0, with Start made absolute.
func TransformConic(m Affine, c Conic) Conic {
	ux, uy, vx, vy := c.axes()
	ux, uy = m.ApplyVector(ux, uy)
	vx, vy = m.ApplyVector(vx, vy)
	cx, cy := m.Apply(c.CenterX, c.CenterY)

	t0 := 0.5 * math.Atan2(2*(ux*vx+uy*vy), ux*ux+uy*uy-vx*vx-vy*vy)
	sin, cos := math.Sincos(t0)
	// P(t0) is the major semi-axis, P(t0 + π/2) the minor.
	ax, ay := ux*cos+vx*sin, uy*cos+vy*sin
	bx, by := -ux*sin+vx*cos, -uy*sin+vy*cos

	major := math.Hypot(ax, ay)
	out := Conic{CenterX: cx, CenterY: cy, Radius: major, Flatness: 1, Sweep: math.Abs(c.Sweep)}
	if major == 0 {
		out.Start = c.Start
		return out
	}
	out.Flatness = math.Hypot(bx, by) / major
	out.Tilt = math.Atan2(ay, ax)

	start, sweep := c.Start-t0, c.Sweep
	if m.Det() < 0 {
		// B runs clockwise from A; reversing the parameter restores the
		// counter-clockwise convention.
		start, sweep = -start, -sweep
	}
	if sweep < 0 {
		start += sweep
	}
	out.Start = start

	if math.Abs(out.Flatness-1) <= circleTolerance {
		out.Start = NormalizeRadians(out.Start + out.Tilt)
		out.Flatness = 1
		out.Tilt = 0
	}
	return out
}
