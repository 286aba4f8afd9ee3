package cryptox

import (
	"golang.org/x/crypto/bcrypt"
)

// bcrypt silently ignores input past this many bytes.
const bcryptMaxInput = 72

// BcryptHasher hashes passwords with bcrypt. The salt and cost are embedded
// in the modular crypt string, so Verify needs nothing but the hash.
type BcryptHasher struct {
	Cost int
}

// BcryptOption configures a BcryptHasher.
type BcryptOption func(*BcryptHasher)

// WithCost overrides the bcrypt work factor. Values outside the range bcrypt
// accepts are clamped by Hash.
func WithCost(cost int) BcryptOption {
	return func(h *BcryptHasher) { h.Cost = cost }
}

// NewBcryptHasher returns a hasher using bcrypt.DefaultCost unless overridden.
func NewBcryptHasher(opts ...BcryptOption) *BcryptHasher {
	h := &BcryptHasher{Cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > bcryptMaxInput {
		return "", ErrPasswordTooLong
	}

	cost := h.Cost
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}

	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *BcryptHasher) Verify(plaintext, encoded string) bool {
	if len(plaintext) > bcryptMaxInput || encoded == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plaintext)) == nil
}
