package descriptor

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Extract flattens keypoints into (x, y, z) triples and z-score normalizes
// the result. The returned descriptor owns its memory; nothing is retained
// between calls.
func Extract(keypoints []Keypoint) (Descriptor, error) {
	if len(keypoints) == 0 {
		return nil, ErrEmptyInput
	}

	v := flatten(keypoints)
	mean, std := meanStdDev(v)

	floats.AddConst(-mean, v)
	floats.Scale(1/(std+epsilon), v)

	return Descriptor(v), nil
}

// flatten lays keypoints out as x0, y0, z0, x1, y1, z1, ...
func flatten(keypoints []Keypoint) []float64 {
	v := make([]float64, 0, Len(len(keypoints)))
	for _, kp := range keypoints {
		v = append(v, kp.X, kp.Y, kp.Z)
	}
	return v
}

// meanStdDev returns the mean and population standard deviation of v
func meanStdDev(v []float64) (mean, std float64) {
	return stat.PopMeanStdDev(v, nil)
}
