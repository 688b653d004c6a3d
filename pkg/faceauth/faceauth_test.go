package faceauth

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/viking-faceauth/pkg/descriptor"
)

var (
	testFace = []descriptor.Keypoint{
		{X: 0.10, Y: 0.20}, {X: 0.40, Y: 0.20, Z: 0.01}, {X: 0.25, Y: 0.50, Z: 0.02},
		{X: 0.15, Y: 0.70}, {X: 0.35, Y: 0.70},
	}
	otherFace = []descriptor.Keypoint{
		{X: 0.90, Y: 0.10, Z: 0.30}, {X: 0.10, Y: 0.90, Z: -0.20}, {X: 0.50, Y: 0.50, Z: 0.50},
		{X: 0.20, Y: 0.30, Z: 0.90}, {X: 0.80, Y: 0.80},
	}
)

func enrolled(t *testing.T, face []descriptor.Keypoint) StoredCredential {
	t.Helper()
	d, err := Enroll(face)
	require.NoError(t, err)
	return StoredCredential{Descriptor: d, Enabled: true}
}

func TestVerify(t *testing.T) {
	stored := enrolled(t, testFace)

	t.Run("Same face matches", func(t *testing.T) {
		ok, err := Verify(stored, testFace, descriptor.DefaultThreshold)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Different face does not match", func(t *testing.T) {
		ok, err := Verify(stored, otherFace, descriptor.DefaultThreshold)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Not enrolled", func(t *testing.T) {
		tests := []struct {
			name   string
			stored StoredCredential
		}{
			{"no descriptor", StoredCredential{Enabled: true}},
			{"disabled", StoredCredential{Descriptor: stored.Descriptor, Enabled: false}},
			{"zero value", StoredCredential{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ok, err := Verify(tt.stored, testFace, descriptor.DefaultThreshold)
				assert.ErrorIs(t, err, ErrNotEnrolled)
				assert.False(t, ok)
			})
		}
	})

	t.Run("Empty live sample", func(t *testing.T) {
		ok, err := Verify(stored, nil, descriptor.DefaultThreshold)
		assert.ErrorIs(t, err, descriptor.ErrEmptyInput)
		assert.False(t, ok)
	})

	t.Run("Length mismatch is a non-match", func(t *testing.T) {
		result, err := verify(stored, testFace[:3], descriptor.DefaultThreshold)
		require.NoError(t, err)
		assert.False(t, result.IsMatch)
		assert.Equal(t, descriptor.MaxDistance, result.Distance)
	})

	t.Run("Does not modify stored credential", func(t *testing.T) {
		before := append(descriptor.Descriptor(nil), stored.Descriptor...)
		_, err := Verify(stored, otherFace, descriptor.DefaultThreshold)
		require.NoError(t, err)
		assert.Equal(t, before, stored.Descriptor)
		assert.True(t, stored.Enabled)
	})
}

func TestEnroll(t *testing.T) {
	t.Run("Descriptor length", func(t *testing.T) {
		d, err := Enroll(testFace)
		require.NoError(t, err)
		assert.Len(t, d, descriptor.Len(len(testFace)))
	})

	t.Run("Empty input", func(t *testing.T) {
		_, err := Enroll(nil)
		assert.ErrorIs(t, err, descriptor.ErrEmptyInput)
	})
}

func TestIsUserError(t *testing.T) {
	assert.True(t, IsUserError(ErrNotEnrolled))
	assert.True(t, IsUserError(ErrNoFace))
	assert.True(t, IsUserError(descriptor.ErrEmptyInput))
	assert.True(t, IsUserError(ErrKeypointCount))
	assert.True(t, IsUserError(ErrInvalidKeypoints))
	assert.False(t, IsUserError(nil))
	assert.False(t, IsUserError(assert.AnError))
}

func TestServiceEnroll(t *testing.T) {
	t.Run("Keypoint count enforced", func(t *testing.T) {
		svc := NewService(nil, Config{KeypointCount: 478})
		_, err := svc.Enroll(testFace)
		assert.ErrorIs(t, err, ErrKeypointCount)
	})

	t.Run("Empty input before count check", func(t *testing.T) {
		svc := NewService(nil, Config{KeypointCount: 478})
		_, err := svc.Enroll(nil)
		assert.ErrorIs(t, err, descriptor.ErrEmptyInput)
	})

	t.Run("Count check disabled", func(t *testing.T) {
		svc := NewService(nil, Config{})
		d, err := svc.Enroll(testFace)
		require.NoError(t, err)
		assert.Len(t, d, 15)
	})

	t.Run("Non-finite keypoints rejected", func(t *testing.T) {
		svc := NewService(nil, Config{})
		bad := append([]descriptor.Keypoint(nil), testFace...)
		bad[2].X = math.NaN()
		_, err := svc.Enroll(bad)
		assert.ErrorIs(t, err, ErrInvalidKeypoints)

		bad[2].X = math.Inf(1)
		_, err = svc.Enroll(bad)
		assert.ErrorIs(t, err, ErrInvalidKeypoints)
	})
}

func TestServiceVerify(t *testing.T) {
	svc := NewService(nil, Config{})
	assert.Equal(t, descriptor.DefaultThreshold, svc.Threshold())
	assert.False(t, svc.HasOracle())

	stored := enrolled(t, testFace)

	ok, err := svc.Verify(stored, testFace)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.VerifyWithThreshold(stored, testFace, 0)
	require.NoError(t, err)
	assert.False(t, ok, "zero threshold never matches")

	ok, err = svc.VerifyWithThreshold(stored, otherFace, math.MaxFloat64)
	require.NoError(t, err)
	assert.True(t, ok)

	strict := NewService(nil, Config{Threshold: 1e-9})
	assert.Equal(t, 1e-9, strict.Threshold())
}
