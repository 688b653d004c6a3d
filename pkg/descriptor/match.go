package descriptor

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Distance returns the Euclidean distance between a and b. Descriptors that
// cannot be compared (nil, empty, different lengths, non-finite values)
// are MaxDistance apart.
func Distance(a, b Descriptor) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return MaxDistance
	}

	d := floats.Distance(a, b, 2)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return MaxDistance
	}
	return d
}

// Match compares a and b. They match when their distance is strictly below
// threshold. Match never fails: anything that cannot be compared is
// reported as a non-match at MaxDistance.
func Match(a, b Descriptor, threshold float64) MatchResult {
	d := Distance(a, b)
	return MatchResult{
		Distance: d,
		IsMatch:  d != MaxDistance && d < threshold,
	}
}

// IsFinite reports whether every component of d is a finite number
func (d Descriptor) IsFinite() bool {
	for _, x := range d {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
