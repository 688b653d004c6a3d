// Package faceauth implements face enrollment and verification on top of
// descriptor extraction and matching.
//
// Callers own all state: the stored credential is read, never written, and
// enrollment returns a descriptor for the caller to persist. Callers are
// expected to allow at most one verification attempt per login session and to
// serialize access to landmark oracles that are not reentrant (see Serialized).
package faceauth

import (
	"errors"

	"github.com/mmcdole/viking-faceauth/pkg/descriptor"
)

// UserMessage is the only text that should reach an end user when face
// verification fails for any reason
const UserMessage = "face verification failed - try again or use password"

var (
	// ErrNotEnrolled is returned when an account has no stored descriptor or
	// face authentication is disabled
	ErrNotEnrolled = errors.New("face authentication not enrolled")

	// ErrKeypointCount is returned when a face does not have the configured
	// number of keypoints
	ErrKeypointCount = errors.New("unexpected keypoint count")

	// ErrInvalidKeypoints is returned when keypoints produce a descriptor with
	// non-finite components
	ErrInvalidKeypoints = errors.New("keypoints contain non-finite values")
)

// StoredCredential is the face credential persisted with an account
type StoredCredential struct {
	Descriptor descriptor.Descriptor
	Enabled    bool
}

// Enrolled reports whether the credential can be verified against
func (c StoredCredential) Enrolled() bool {
	return c.Enabled && len(c.Descriptor) > 0
}

// Verify extracts a descriptor from live keypoints and matches it against the
// stored credential. Only the decision is returned.
func Verify(stored StoredCredential, keypoints []descriptor.Keypoint, threshold float64) (bool, error) {
	result, err := verify(stored, keypoints, threshold)
	if err != nil {
		return false, err
	}
	return result.IsMatch, nil
}

func verify(stored StoredCredential, keypoints []descriptor.Keypoint, threshold float64) (descriptor.MatchResult, error) {
	if !stored.Enrolled() {
		return descriptor.MatchResult{Distance: descriptor.MaxDistance}, ErrNotEnrolled
	}

	live, err := descriptor.Extract(keypoints)
	if err != nil {
		return descriptor.MatchResult{Distance: descriptor.MaxDistance}, err
	}

	return descriptor.Match(stored.Descriptor, live, threshold), nil
}

// Enroll extracts the descriptor to persist for a new face credential
func Enroll(keypoints []descriptor.Keypoint) (descriptor.Descriptor, error) {
	return descriptor.Extract(keypoints)
}

// IsUserError reports whether err is a per-request face failure that should be
// shown to the user as UserMessage and retried, rather than a server fault
func IsUserError(err error) bool {
	return errors.Is(err, ErrNotEnrolled) ||
		errors.Is(err, descriptor.ErrEmptyInput) ||
		errors.Is(err, ErrKeypointCount) ||
		errors.Is(err, ErrInvalidKeypoints) ||
		errors.Is(err, ErrNoFace)
}
