package authentication

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/digitive/crypt"
)

const saltAlphabet = "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// UnixCrypt implements a hasher using the traditional Unix crypt algorithm.
// Only kept for accounts migrated from legacy systems.
type UnixCrypt struct{}

// NewUnixCrypt creates a new Unix crypt hasher
func NewUnixCrypt() *UnixCrypt {
	return &UnixCrypt{}
}

// Hash hashes password with a random two character salt
func (h *UnixCrypt) Hash(password string) (string, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	salt := string([]byte{saltAlphabet[int(b[0])%len(saltAlphabet)], saltAlphabet[int(b[1])%len(saltAlphabet)]})
	return h.HashWithSalt(password, salt)
}

// HashWithSalt hashes password with the given two character salt
func (h *UnixCrypt) HashWithSalt(password, salt string) (string, error) {
	if len(salt) != 2 {
		return "", errors.New("salt must be two characters")
	}
	return crypt.Crypt(password, salt)
}

// VerifyPassword checks if a password matches its hashed version
func (h *UnixCrypt) VerifyPassword(hashedPassword, password string) error {
	// Extract salt from the hash (first 2 characters)
	if len(hashedPassword) < 2 {
		return errors.New("invalid hash: too short")
	}
	salt := hashedPassword[:2]

	computed, err := crypt.Crypt(password, salt)
	if err != nil {
		return err
	}

	if computed != hashedPassword {
		return ErrPasswordMismatch
	}

	return nil
}
