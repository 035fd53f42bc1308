package aggregate

import (
	"math"

	"github.com/hazyhaar/climmo/pkg/frame"
	"gonum.org/v1/gonum/stat"
)

// Index100 expresses each value relative to the mean of all values, the mean
// being 100. Values are missing when that mean is 0 or values is empty.
func Index100(values []float64) []frame.Num {
	out := make([]frame.Num, len(values))
	if len(values) == 0 {
		return out
	}
	ref := stat.Mean(values, nil)
	if ref == 0 {
		return out
	}
	for i, v := range values {
		out[i] = frame.Some(v / ref * 100)
	}
	return out
}

// PctChange returns the percentage change from prev to cur, missing when
// either is missing or prev is 0.
func PctChange(prev, cur frame.Num) frame.Num {
	if !prev.Valid || !cur.Valid || prev.V == 0 {
		return frame.Num{}
	}
	return frame.Some((cur.V - prev.V) / prev.V * 100)
}

// RollingMean is a centred moving average over window points. Positions
// whose window runs past either end of the series are missing.
func RollingMean(values []float64, window int) []frame.Num {
	out := make([]frame.Num, len(values))
	if window < 1 {
		return out
	}
	for i := range values {
		lo := i - window/2
		hi := lo + window
		if lo < 0 || hi > len(values) {
			continue
		}
		out[i] = frame.Some(stat.Mean(values[lo:hi], nil))
	}
	return out
}

// Position places a local value relative to a reference.
type Position string

const (
	Below       Position = "moins"
	Average     Position = "moyenne"
	Above       Position = "plus"
	Unavailable Position = "non disponible"
)

// DefaultTolerance is the relative band within which a value counts as
// average.
const DefaultTolerance = 0.02

// CompareToReference classifies value against ref with a relative tolerance:
// below ref*(1-tol) is Below, above ref*(1+tol) is Above, anything between is
// Average. Missing values and a zero reference are Unavailable.
func CompareToReference(value, ref frame.Num, tol float64) Position {
	if !value.Valid || !ref.Valid || ref.V == 0 || math.IsNaN(value.V) || math.IsNaN(ref.V) {
		return Unavailable
	}
	switch {
	case value.V < ref.V*(1-tol):
		return Below
	case value.V > ref.V*(1+tol):
		return Above
	default:
		return Average
	}
}
