package authentication

import (
	"errors"

	"github.com/mmcdole/viking-faceauth/pkg/descriptor"
)

// PasswordVerifier is an interface for password verification algorithms
type PasswordVerifier interface {
	// VerifyPassword checks if a password matches its hashed version
	VerifyPassword(hashedPassword, password string) error
}

// PasswordHasher produces new password hashes
type PasswordHasher interface {
	Hash(password string) (string, error)
}

var (
	// ErrInvalidCredentials is returned when authentication fails
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAttemptInProgress is returned when another face operation for the
	// same account has not finished yet
	ErrAttemptInProgress = errors.New("authentication attempt already in progress")

	// ErrPasswordMismatch is returned by verifiers when the password is wrong
	ErrPasswordMismatch = errors.New("password mismatch")

	// ErrUnsupportedHash is returned for hashes no verifier understands
	ErrUnsupportedHash = errors.New("unsupported hash format")
)

// FaceInput is a live face sample: either landmark keypoints computed by the
// client, or a raw image for the configured landmark oracle. Keypoints take
// precedence when both are set.
type FaceInput struct {
	Keypoints []descriptor.Keypoint
	Image     []byte
}

func (f FaceInput) usesImage() bool {
	return len(f.Keypoints) == 0 && len(f.Image) > 0
}
