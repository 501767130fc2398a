// Package mapping converts raw axis readings into the normalized stick space
// used by the drive state.
package mapping

import (
	"github.com/eike-welk/donkeypart-bluetooth-game-controller/internal/profile"
)

// Normalize linear-maps raw from [entry.Min, entry.Max] to -1.0..1.0, clamped
// to absorb calibration overshoot at the physical extremes. A degenerate
// range is rejected at profile load time; it yields 0 here.
func Normalize(e profile.Entry, raw int32) float64 {
	if e.Max == e.Min {
		return 0
	}
	v := 2*float64(raw-e.Min)/float64(e.Max-e.Min) - 1
	if e.Invert {
		v = -v
	}
	return Clamp(v)
}

// Clamp limits v to -1.0..1.0.
func Clamp(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
