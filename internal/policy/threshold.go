package policy

import (
	"fmt"
	"math"
)

// DefaultThreshold is the cut-point calibrated for the deployed model.
// Artifacts carry their own threshold; this is used only when building one.
const DefaultThreshold = 0.42

// Decide returns 1 iff p >= threshold.
func Decide(p, threshold float64) int {
	if p >= threshold {
		return 1
	}
	return 0
}

// CheckThreshold rejects thresholds outside [0, 1].
func CheckThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return fmt.Errorf("threshold must be within [0, 1], got %v", threshold)
	}
	return nil
}
