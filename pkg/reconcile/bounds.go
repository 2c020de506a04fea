// Package reconcile turns measured values into flux bounds and reconciles
// inconsistent flux measurements with the model.
package reconcile

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// confidenceZ is the normal quantile used for the measurement interval.
const confidenceZ = 1.96

// BoundsFor returns the bounds implied by a set of observations. NaN entries
// are dropped. Three or more observations give mean ± 1.96 sample standard
// deviations, one or two give their min and max. ok is false when nothing is
// left; such measurements must be skipped.
func BoundsFor(observations []float64) (lower, upper float64, ok bool) {
	valid := Valid(observations)
	switch {
	case len(valid) == 0:
		return 0, 0, false
	case len(valid) > 2:
		mean, std := stat.MeanStdDev(valid, nil)
		return mean - confidenceZ*std, mean + confidenceZ*std, true
	default:
		lower, upper = valid[0], valid[0]
		for _, v := range valid[1:] {
			lower = math.Min(lower, v)
			upper = math.Max(upper, v)
		}
		return lower, upper, true
	}
}

// Valid returns the observations that are not NaN.
func Valid(observations []float64) []float64 {
	out := make([]float64, 0, len(observations))
	for _, v := range observations {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
