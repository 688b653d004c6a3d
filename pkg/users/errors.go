package users

import "errors"

var (
	// ErrUserNotFound is returned when a user does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidHash is returned when a user record has no usable password hash
	ErrInvalidHash = errors.New("invalid password hash")

	// ErrInvalidUsername is returned for usernames that cannot name a record
	ErrInvalidUsername = errors.New("invalid username")
)
