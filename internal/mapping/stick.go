package mapping

import "math"

// Deflections smaller than this count as the stick resting at center.
const centerEpsilon = 1e-9

// SquareMap remaps a point in the stick's circular travel envelope onto the
// square envelope expected by the vehicle, so that a full diagonal deflection
// reaches full magnitude on both outputs at once.
//
// The angle of deflection is preserved: with r = |(x,y)| and m = max(|x|,|y|)
// the point is scaled by r/m, which carries the circle of radius r onto the
// square of half-width r. Along an axis m equals r and the input passes
// through unchanged; at the full diagonal (r=1, |x|=|y|=1/√2) both outputs
// reach ±1. Points already on the square boundary stay put (the corner case
// (±1,±1) via the clamp), as does the origin, which must short-circuit since
// the scale is undefined at r=0.
func SquareMap(x, y float64) (u, v float64) {
	r := math.Hypot(x, y)
	if r <= centerEpsilon {
		return 0, 0
	}
	m := math.Max(math.Abs(x), math.Abs(y))
	return Clamp(x * r / m), Clamp(y * r / m)
}
