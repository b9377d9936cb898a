package gacha

import (
	"math"
)

// SumTolerance is how far a probability table may drift from 1 before it is
// reported as misconfigured.
const SumTolerance = 0.001

func validateProb(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return ErrInvalidProb
	}
	if p < 0 || p > 1 {
		return ErrInvalidProb
	}
	return nil
}

// SumOK reports whether sum is within SumTolerance of 1.
func SumOK(sum float64) bool {
	return math.Abs(sum-1) <= SumTolerance
}
