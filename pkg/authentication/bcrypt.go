package authentication

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt verifies and produces bcrypt ($2a$, $2b$, $2y$) password hashes
type Bcrypt struct {
	Cost int
}

// NewBcrypt returns a Bcrypt hasher using bcrypt.DefaultCost
func NewBcrypt() *Bcrypt {
	return &Bcrypt{Cost: bcrypt.DefaultCost}
}

// Hash returns a bcrypt hash of password
func (b *Bcrypt) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.Cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks if a password matches its bcrypt hash
func (b *Bcrypt) VerifyPassword(hashedPassword, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}
