package authentication

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mmcdole/viking-faceauth/pkg/descriptor"
	"github.com/mmcdole/viking-faceauth/pkg/faceauth"
	"github.com/mmcdole/viking-faceauth/pkg/logging"
	"github.com/mmcdole/viking-faceauth/pkg/users"
)

// Authenticator handles password and face authentication of accounts in a
// user repository
type Authenticator struct {
	users    *users.Repository
	verifier PasswordVerifier
	faces    *faceauth.Service

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewAuthenticator creates a new authenticator. A nil verifier selects the
// MultiVerifier, a nil face service one with default settings and no
// landmark oracle.
func NewAuthenticator(repository *users.Repository, verifier PasswordVerifier, faces *faceauth.Service) (*Authenticator, error) {
	if repository == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if verifier == nil {
		verifier = NewMultiVerifier()
	}
	if faces == nil {
		faces = faceauth.NewService(nil, faceauth.Config{})
	}

	return &Authenticator{
		users:    repository,
		verifier: verifier,
		faces:    faces,
		inFlight: make(map[string]struct{}),
	}, nil
}

// Faces returns the face service used by the authenticator
func (a *Authenticator) Faces() *faceauth.Service {
	return a.faces
}

// Authenticate checks username and password and returns the account.
// Usernames are matched case-insensitively here and in the face operations.
func (a *Authenticator) Authenticate(username, password string) (*users.User, error) {
	username = users.CanonicalUsername(username)
	user, err := a.checkPassword(username, password)
	if err != nil {
		logging.Access.LogAuth("login", username, "failure", "reason", err)
		return nil, ErrInvalidCredentials
	}

	logging.Access.LogAuth("login", username, "success", "face_enabled", user.FaceEnabled)
	return user, nil
}

// AuthenticateFace verifies a live face sample against the account's
// enrolled descriptor. Failures wrap ErrInvalidCredentials,
// faceauth.ErrNotEnrolled or descriptor.ErrEmptyInput.
func (a *Authenticator) AuthenticateFace(ctx context.Context, username string, input FaceInput) error {
	username = users.CanonicalUsername(username)
	release, err := a.acquire(username)
	if err != nil {
		logging.Access.LogAuth("face-login", username, "rejected", "reason", err)
		return err
	}
	defer release()

	if err := ctx.Err(); err != nil {
		return err
	}

	user, err := a.users.GetUser(username)
	if err != nil {
		logging.Access.LogAuth("face-login", username, "failure", "reason", err)
		if errors.Is(err, users.ErrUserNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("loading user: %w", err)
	}

	var ok bool
	if input.usesImage() {
		ok, err = a.faces.VerifyImage(ctx, user.Credential(), input.Image)
	} else {
		ok, err = a.faces.Verify(user.Credential(), input.Keypoints)
	}
	if err != nil {
		logging.Access.LogAuth("face-login", username, "failure", "reason", err)
		return fmt.Errorf("face authentication: %w", err)
	}
	if !ok {
		logging.Access.LogAuth("face-login", username, "failure", "reason", "no match")
		return ErrInvalidCredentials
	}

	logging.Access.LogAuth("face-login", username, "success")
	return nil
}

// EnrollFace stores a new face descriptor for the account after checking its
// password, replacing any previous enrollment
func (a *Authenticator) EnrollFace(ctx context.Context, username, password string, input FaceInput) error {
	username = users.CanonicalUsername(username)
	release, err := a.acquire(username)
	if err != nil {
		logging.Access.LogAuth("face-enroll", username, "rejected", "reason", err)
		return err
	}
	defer release()

	user, err := a.checkPassword(username, password)
	if err != nil {
		logging.Access.LogAuth("face-enroll", username, "failure", "reason", err)
		return ErrInvalidCredentials
	}

	var d descriptor.Descriptor
	if input.usesImage() {
		d, err = a.faces.EnrollImage(ctx, input.Image)
	} else {
		d, err = a.faces.Enroll(input.Keypoints)
	}
	if err != nil {
		logging.Access.LogAuth("face-enroll", username, "failure", "reason", err)
		return fmt.Errorf("face enrollment: %w", err)
	}

	user.FaceDescriptor = d
	user.FaceEnabled = true
	if err := a.users.SaveUser(user); err != nil {
		logging.App.Error("Failed to save face enrollment", "username", username, "error", err)
		return fmt.Errorf("saving enrollment: %w", err)
	}

	logging.Access.LogAuth("face-enroll", username, "success", "keypoints", len(d)/3)
	return nil
}

// DisableFace removes the account's face credential after checking its
// password
func (a *Authenticator) DisableFace(username, password string) error {
	username = users.CanonicalUsername(username)
	release, err := a.acquire(username)
	if err != nil {
		return err
	}
	defer release()

	user, err := a.checkPassword(username, password)
	if err != nil {
		logging.Access.LogAuth("face-disable", username, "failure", "reason", err)
		return ErrInvalidCredentials
	}

	user.FaceDescriptor = nil
	user.FaceEnabled = false
	if err := a.users.SaveUser(user); err != nil {
		logging.App.Error("Failed to save face removal", "username", username, "error", err)
		return fmt.Errorf("saving user: %w", err)
	}

	logging.Access.LogAuth("face-disable", username, "success")
	return nil
}

// UserExists checks if a user exists and returns any error encountered
func (a *Authenticator) UserExists(username string) (bool, error) {
	return a.users.UserExists(username)
}

func (a *Authenticator) checkPassword(username, password string) (*users.User, error) {
	user, err := a.users.GetUser(username)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if err := a.verifier.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, err
	}
	return user, nil
}

// acquire marks the canonical username as busy until the returned release
// is called
func (a *Authenticator) acquire(username string) (func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, busy := a.inFlight[username]; busy {
		return nil, ErrAttemptInProgress
	}
	a.inFlight[username] = struct{}{}

	return func() {
		a.mu.Lock()
		delete(a.inFlight, username)
		a.mu.Unlock()
	}, nil
}
