package semiparametric

import (
	"math"

	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
)

// BoundTransform maps an unconstrained function output into [Low, High]:
//
//	value = Low + (High-Low) * (sin(raw)+1) / 2
//
// The mapping is smooth and periodic; raw = pi/2 gives High, raw = -pi/2 gives
// Low and raw = 0 gives the midpoint. Build rejects Low > High. An infinite raw
// value has no image and yields NaN.
type BoundTransform struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Apply maps raw into [Low, High].
func (b BoundTransform) Apply(raw float64) float64 {
	v := b.Low + 0.5*(b.High-b.Low)*(math.Sin(raw)+1)
	// sin can overshoot by one ulp
	return scerr.ClipValue(v, b.Low, b.High)
}

// Derivative returns d Apply / d raw.
func (b BoundTransform) Derivative(raw float64) float64 {
	return 0.5 * (b.High - b.Low) * math.Cos(raw)
}

// Inverse returns the raw value in [-pi/2, pi/2] mapping to value. Values
// outside the interval are clamped to its ends.
func (b BoundTransform) Inverse(value float64) float64 {
	width := b.High - b.Low
	if width <= 0 {
		return 0
	}
	s := 2*(value-b.Low)/width - 1
	if s < -1 {
		s = -1
	}
	if s > 1 {
		s = 1
	}
	return math.Asin(s)
}
