package cryptox

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Hasher is a one-way salted password hash. Hash must be non-deterministic
// and Verify must report false for malformed hashes rather than failing.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encoded string) bool
}

// Supported password hashing algorithms.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

var ErrPasswordTooLong = errors.New("cryptox: password exceeds hasher input limit")

// NewHasher returns the hasher for algorithm. An empty algorithm selects
// bcrypt. The pepper is only used by argon2id.
func NewHasher(algorithm, pepper string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", AlgorithmBcrypt:
		return NewBcryptHasher(), nil
	case AlgorithmArgon2id, "argon2":
		return &Argon2Hasher{Pepper: pepper}, nil
	default:
		return nil, fmt.Errorf("cryptox: unsupported password hash algorithm %q", algorithm)
	}
}

// GeneratePassword returns a random 16 character alphanumeric password.
func GeneratePassword() (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 16

	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("cryptox: generate password: %w", err)
		}
		out[i] = charset[n.Int64()]
	}
	return string(out), nil
}
