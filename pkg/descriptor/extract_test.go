package descriptor

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomFace builds n keypoints in pixel space, the way a landmark detector
// reports them for a face somewhere inside a 640x480 frame
func randomFace(rng *rand.Rand, n int) []Keypoint {
	face := make([]Keypoint, n)
	for i := range face {
		face[i] = Keypoint{
			X: 100 + rng.Float64()*400,
			Y: 50 + rng.Float64()*380,
			Z: rng.Float64()*40 - 20,
		}
	}
	return face
}

func popMeanStd(v []float64) (float64, float64) {
	var sum float64
	for _, x := range v {
		sum += x
	}
	mean := sum / float64(len(v))
	var ss float64
	for _, x := range v {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(v)))
}

func TestExtract(t *testing.T) {
	t.Run("Empty input", func(t *testing.T) {
		d, err := Extract(nil)
		assert.ErrorIs(t, err, ErrEmptyInput)
		assert.Nil(t, d)

		d, err = Extract([]Keypoint{})
		assert.ErrorIs(t, err, ErrEmptyInput)
		assert.Nil(t, d)
	})

	t.Run("Hand computed reference", func(t *testing.T) {
		// raw vector [0,0,0,2,0,0]: mean 1/3, population std sqrt(5)/3
		d, err := Extract([]Keypoint{{X: 0, Y: 0, Z: 0}, {X: 2, Y: 0, Z: 0}})
		require.NoError(t, err)
		require.Len(t, d, 6)

		low := -1 / math.Sqrt(5)
		high := math.Sqrt(5)
		want := []float64{low, low, low, high, low, low}
		for i := range want {
			assert.InDelta(t, want[i], d[i], 1e-9, "component %d", i)
		}
	})

	t.Run("Missing depth is zero", func(t *testing.T) {
		withZero, err := Extract([]Keypoint{{X: 1, Y: 2, Z: 0}, {X: 3, Y: 5}})
		require.NoError(t, err)
		withoutZ, err := Extract([]Keypoint{{X: 1, Y: 2}, {X: 3, Y: 5}})
		require.NoError(t, err)
		assert.Equal(t, withZero, withoutZ)
	})

	t.Run("Length and moments", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		for _, n := range []int{1, 2, 5, 68, DefaultKeypointCount} {
			face := randomFace(rng, n)
			if n == 1 {
				face[0] = Keypoint{X: 3, Y: 9, Z: -4}
			}

			d, err := Extract(face)
			require.NoError(t, err)
			require.Len(t, d, Len(n))

			mean, std := popMeanStd(d)
			assert.InDelta(t, 0, mean, 1e-6, "mean for n=%d", n)
			assert.InDelta(t, 1, std, 1e-6, "std for n=%d", n)
		}
	})

	t.Run("Degenerate input", func(t *testing.T) {
		d, err := Extract([]Keypoint{{X: 4, Y: 4, Z: 4}, {X: 4, Y: 4, Z: 4}})
		require.NoError(t, err)
		for i, x := range d {
			assert.False(t, math.IsNaN(x), "component %d is NaN", i)
			assert.InDelta(t, 0, x, 1e-9)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		face := randomFace(rand.New(rand.NewSource(11)), DefaultKeypointCount)
		first, err := Extract(face)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := Extract(face)
			require.NoError(t, err)
			for j := range first {
				if math.Float64bits(first[j]) != math.Float64bits(again[j]) {
					t.Fatalf("run %d differs at %d: %v != %v", i, j, first[j], again[j])
				}
			}
		}
	})

	t.Run("Does not alias input", func(t *testing.T) {
		face := []Keypoint{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}}
		_, err := Extract(face)
		require.NoError(t, err)
		assert.Equal(t, []Keypoint{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}}, face)
	})

	t.Run("Invariant to position and scale", func(t *testing.T) {
		face := randomFace(rand.New(rand.NewSource(3)), 68)
		moved := make([]Keypoint, len(face))
		for i, kp := range face {
			// uniform scale and uniform offset applied to every axis
			moved[i] = Keypoint{X: kp.X*2.5 + 40, Y: kp.Y*2.5 + 40, Z: kp.Z*2.5 + 40}
		}

		a, err := Extract(face)
		require.NoError(t, err)
		b, err := Extract(moved)
		require.NoError(t, err)

		result := Match(a, b, DefaultThreshold)
		assert.InDelta(t, 0, result.Distance, 1e-6)
		assert.True(t, result.IsMatch)
	})
}

func BenchmarkExtract(b *testing.B) {
	face := randomFace(rand.New(rand.NewSource(1)), DefaultKeypointCount)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Extract(face)
	}
}
