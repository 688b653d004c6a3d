package users

import (
	"strings"

	"github.com/mmcdole/viking-faceauth/pkg/descriptor"
	"github.com/mmcdole/viking-faceauth/pkg/faceauth"
)

// User is an account's credential record
type User struct {
	Username       string                `json:"username"`
	PasswordHash   string                `json:"password_hash"`
	FaceDescriptor descriptor.Descriptor `json:"face_descriptor,omitempty"`
	FaceEnabled    bool                  `json:"face_enabled"`
}

// Credential returns the face credential stored with the user
func (u *User) Credential() faceauth.StoredCredential {
	return faceauth.StoredCredential{
		Descriptor: u.FaceDescriptor,
		Enabled:    u.FaceEnabled,
	}
}

// Clone returns a deep copy of u
func (u *User) Clone() *User {
	c := *u
	if u.FaceDescriptor != nil {
		c.FaceDescriptor = append(descriptor.Descriptor(nil), u.FaceDescriptor...)
	}
	return &c
}

// CanonicalUsername returns the spelling that identifies an account.
// Usernames are case-insensitive, so every store and lock keys on this form.
func CanonicalUsername(username string) string {
	return strings.ToLower(username)
}

// Source represents a source of user data
type Source interface {
	// LoadUser loads user data for a given username
	LoadUser(username string) (*User, error)
}

// Store is a Source that can also persist users
type Store interface {
	Source
	// SaveUser creates or replaces the record for user.Username
	SaveUser(user *User) error
}
