package errors

import "math"

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CheckNumericalStability returns a NumericalInstabilityError for operation
// at iteration when any of values is NaN or infinite.
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if !finite(v) {
			return NewNumericalInstabilityError(operation, values, iteration)
		}
	}
	return nil
}

// CheckScalar is CheckNumericalStability for one value.
func CheckScalar(operation string, value float64, iteration int) error {
	if finite(value) {
		return nil
	}
	return NewNumericalInstabilityError(operation, []float64{value}, iteration)
}

// ClipValue limits value to [lo, hi]. NaN passes through unchanged.
func ClipValue(value, lo, hi float64) float64 {
	switch {
	case value < lo:
		return lo
	case value > hi:
		return hi
	}
	return value
}
