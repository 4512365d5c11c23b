package common

import "golang.org/x/exp/constraints"

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// Clamp01 clamps v into the closed range [0, 1]. NaN is treated as 0.
//
// Parameters:
//   - v: the value to clamp
//
// Returns:
//   - float32: v limited to [0, 1]
func Clamp01(v float32) float32 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// DivCeil returns ceil(n / d) for non-negative n and positive d.
// A zero or negative divisor returns 0.
func DivCeil[T constraints.Integer](n, d T) T {
	if d <= 0 || n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
