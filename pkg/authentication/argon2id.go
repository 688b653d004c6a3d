package authentication

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	defaultArgon2Memory  = 64 * 1024
	defaultArgon2Time    = 2
	defaultArgon2Threads = 1
	defaultArgon2KeyLen  = 32
	argon2SaltLen        = 16
)

// Argon2ID verifies and produces Argon2id PHC-formatted password hashes.
// Example format: $argon2id$v=19$m=65536,t=2,p=1$<salt_b64>$<hash_b64>
type Argon2ID struct {
	// Parameters used by Hash. Verification always uses the parameters
	// encoded in the hash.
	Memory  uint32
	Time    uint32
	Threads uint8
	KeyLen  uint32
}

// NewArgon2ID returns an Argon2ID with default hashing parameters.
func NewArgon2ID() *Argon2ID {
	return &Argon2ID{
		Memory:  defaultArgon2Memory,
		Time:    defaultArgon2Time,
		Threads: defaultArgon2Threads,
		KeyLen:  defaultArgon2KeyLen,
	}
}

// Hash returns a PHC string for password with a random salt.
func (a *Argon2ID) Hash(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, a.Time, a.Memory, a.Threads, a.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, a.Memory, a.Time, a.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword verifies a password against a PHC-formatted argon2id hash.
func (a *Argon2ID) VerifyPassword(hashedPassword, password string) error {
	params, salt, expectedHash, err := parsePHCArgon2ID(hashedPassword)
	if err != nil {
		return err
	}

	derived := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.threads, uint32(len(expectedHash)))
	if subtle.ConstantTimeCompare(derived, expectedHash) == 1 {
		return nil
	}
	return ErrPasswordMismatch
}

type argon2Params struct {
	memory  uint32
	time    uint32
	threads uint8
}

func parsePHCArgon2ID(s string) (argon2Params, []byte, []byte, error) {
	params := argon2Params{memory: defaultArgon2Memory, time: defaultArgon2Time, threads: defaultArgon2Threads}

	parts := strings.Split(s, "$")
	if len(parts) < 2 || parts[0] != "" || parts[1] != "argon2id" {
		return params, nil, nil, fmt.Errorf("%w: not an argon2id hash", ErrUnsupportedHash)
	}
	parts = parts[2:]

	// Version is optional
	if len(parts) > 0 && strings.HasPrefix(parts[0], "v=") {
		v, err := strconv.Atoi(strings.TrimPrefix(parts[0], "v="))
		if err != nil || v != argon2.Version {
			return params, nil, nil, fmt.Errorf("unsupported argon2id version %q", parts[0])
		}
		parts = parts[1:]
	}
	if len(parts) != 3 {
		return params, nil, nil, fmt.Errorf("invalid argon2id format")
	}

	seen := 0
	for _, kv := range strings.Split(parts[0], ",") {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			return params, nil, nil, fmt.Errorf("invalid argon2id parameter %q", kv)
		}
		n, err := strconv.ParseUint(val, 10, 32)
		if err != nil || n == 0 {
			return params, nil, nil, fmt.Errorf("invalid argon2id parameter %q", kv)
		}
		switch key {
		case "m":
			params.memory = uint32(n)
		case "t":
			params.time = uint32(n)
		case "p":
			if n > 255 {
				return params, nil, nil, fmt.Errorf("invalid argon2id parameter %q", kv)
			}
			params.threads = uint8(n)
		default:
			return params, nil, nil, fmt.Errorf("unknown argon2id parameter %q", key)
		}
		seen++
	}
	if seen != 3 {
		return params, nil, nil, fmt.Errorf("argon2id hash needs m, t and p parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return params, nil, nil, fmt.Errorf("invalid argon2id salt: %w", err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return params, nil, nil, fmt.Errorf("invalid argon2id hash: %w", err)
	}
	if len(hash) == 0 {
		return params, nil, nil, fmt.Errorf("invalid argon2id hash: empty")
	}
	return params, salt, hash, nil
}
