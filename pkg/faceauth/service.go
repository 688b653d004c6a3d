package faceauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmcdole/viking-faceauth/pkg/descriptor"
	"github.com/mmcdole/viking-faceauth/pkg/logging"
)

// Config holds the tunables of a Service
type Config struct {
	// Threshold is the distance below which a face matches. Zero means
	// descriptor.DefaultThreshold.
	Threshold float64

	// KeypointCount is the number of keypoints the landmark model reports per
	// face. Enrollment rejects faces of any other size. Zero disables the check.
	KeypointCount int
}

// Service runs enrollment and verification, optionally detecting landmarks
// in raw images through an injected oracle
type Service struct {
	oracle        LandmarkOracle
	threshold     float64
	keypointCount int
}

// NewService creates a Service. oracle may be nil, in which case only the
// keypoint based operations are available.
func NewService(oracle LandmarkOracle, config Config) *Service {
	threshold := config.Threshold
	if threshold == 0 {
		threshold = descriptor.DefaultThreshold
	}
	return &Service{
		oracle:        oracle,
		threshold:     threshold,
		keypointCount: config.KeypointCount,
	}
}

// Threshold returns the threshold used when the caller does not supply one
func (s *Service) Threshold() float64 {
	return s.threshold
}

// HasOracle reports whether image based operations are available
func (s *Service) HasOracle() bool {
	return s.oracle != nil
}

// Verify matches live keypoints against stored using the service threshold
func (s *Service) Verify(stored StoredCredential, keypoints []descriptor.Keypoint) (bool, error) {
	return s.VerifyWithThreshold(stored, keypoints, s.threshold)
}

// VerifyWithThreshold matches live keypoints against stored using threshold
func (s *Service) VerifyWithThreshold(stored StoredCredential, keypoints []descriptor.Keypoint, threshold float64) (bool, error) {
	result, err := verify(stored, keypoints, threshold)
	if err != nil {
		return false, err
	}
	logging.App.Debug("Face match computed", "distance", result.Distance, "threshold", threshold, "match", result.IsMatch)
	return result.IsMatch, nil
}

// Enroll extracts a descriptor for persistence, enforcing the configured
// keypoint count
func (s *Service) Enroll(keypoints []descriptor.Keypoint) (descriptor.Descriptor, error) {
	if s.keypointCount > 0 && len(keypoints) > 0 && len(keypoints) != s.keypointCount {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrKeypointCount, len(keypoints), s.keypointCount)
	}

	d, err := Enroll(keypoints)
	if err != nil {
		return nil, err
	}
	if !d.IsFinite() {
		return nil, ErrInvalidKeypoints
	}
	return d, nil
}

// VerifyImage detects the face in image and verifies it against stored
func (s *Service) VerifyImage(ctx context.Context, stored StoredCredential, image []byte) (bool, error) {
	if !stored.Enrolled() {
		return false, ErrNotEnrolled
	}

	keypoints, err := s.detect(ctx, image)
	if err != nil {
		return false, err
	}
	return s.Verify(stored, keypoints)
}

// EnrollImage detects the face in image and returns its descriptor
func (s *Service) EnrollImage(ctx context.Context, image []byte) (descriptor.Descriptor, error) {
	keypoints, err := s.detect(ctx, image)
	if err != nil {
		return nil, err
	}
	return s.Enroll(keypoints)
}

// detect returns the keypoints of the first face the oracle finds
func (s *Service) detect(ctx context.Context, image []byte) ([]descriptor.Keypoint, error) {
	if s.oracle == nil {
		return nil, errors.New("no landmark oracle configured")
	}
	if len(image) == 0 {
		return nil, ErrNoFace
	}

	faces, err := s.oracle.Landmarks(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("detecting landmarks: %w", err)
	}
	if len(faces) == 0 || len(faces[0]) == 0 {
		return nil, ErrNoFace
	}
	if len(faces) > 1 {
		logging.App.Debug("Multiple faces detected, using the first", "faces", len(faces))
	}
	return faces[0], nil
}
