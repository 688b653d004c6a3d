package authentication

import (
	"errors"
	"strings"
)

// MultiVerifier detects the hash type and delegates to the matching verifier
type MultiVerifier struct {
	argon2id  PasswordVerifier
	bcrypt    PasswordVerifier
	unixCrypt PasswordVerifier
}

// NewMultiVerifier creates a verifier that supports Argon2id, bcrypt and
// Unix crypt hashes
func NewMultiVerifier() *MultiVerifier {
	return &MultiVerifier{
		argon2id:  NewArgon2ID(),
		bcrypt:    NewBcrypt(),
		unixCrypt: NewUnixCrypt(),
	}
}

// VerifyPassword detects the hash type and verifies using the appropriate algorithm
func (v *MultiVerifier) VerifyPassword(hashedPassword, password string) error {
	if hashedPassword == "" {
		return errors.New("empty hash")
	}

	switch {
	case strings.HasPrefix(hashedPassword, "$argon2id$"):
		return v.argon2id.VerifyPassword(hashedPassword, password)
	case strings.HasPrefix(hashedPassword, "$2a$"),
		strings.HasPrefix(hashedPassword, "$2b$"),
		strings.HasPrefix(hashedPassword, "$2y$"):
		return v.bcrypt.VerifyPassword(hashedPassword, password)
	case len(hashedPassword) == 13 && !strings.Contains(hashedPassword, "$"):
		// Unix crypt format: 13 characters, no $ symbols
		return v.unixCrypt.VerifyPassword(hashedPassword, password)
	}

	return ErrUnsupportedHash
}
