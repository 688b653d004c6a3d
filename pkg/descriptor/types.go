// Package descriptor turns facial keypoints into normalized descriptors and
// compares descriptors by Euclidean distance.
package descriptor

import (
	"errors"
	"math"
)

const (
	// DefaultKeypointCount is the number of keypoints produced per face by the
	// MediaPipe FaceMesh model with refined landmarks
	DefaultKeypointCount = 478

	// DefaultThreshold is the distance below which two descriptors match
	DefaultThreshold = 0.6

	// MaxDistance is reported when two descriptors cannot be compared
	MaxDistance = math.MaxFloat64

	// epsilon guards the normalization against zero variance
	epsilon = 1e-10
)

var (
	// ErrEmptyInput is returned when no keypoints are supplied to extraction
	ErrEmptyInput = errors.New("no keypoints supplied")
)

// Keypoint is a single facial landmark. Z is zero when the detector does not
// report depth.
type Keypoint struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z,omitempty" yaml:"z,omitempty"`
}

// Descriptor is a z-score normalized, flattened keypoint vector
type Descriptor []float64

// Len returns the descriptor length for a face with n keypoints
func Len(n int) int {
	return 3 * n
}

// MatchResult is the outcome of comparing two descriptors
type MatchResult struct {
	Distance float64 `json:"distance"`
	IsMatch  bool    `json:"is_match"`
}
