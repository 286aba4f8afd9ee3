package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// MinHMACSecretSize is the shortest HS256 secret we accept.
const MinHMACSecretSize = 32

var ErrWeakSecret = errors.New("jwtx: HMAC secret must be at least 32 bytes")

// HMACSigner signs HS256 tokens. It has no kid and publishes nothing, so it
// is never added to a KeySet.
type HMACSigner struct {
	secret []byte
}

// NewHMACSigner copies secret and returns a signer for it.
func NewHMACSigner(secret []byte) (*HMACSigner, error) {
	if len(secret) < MinHMACSecretSize {
		return nil, ErrWeakSecret
	}
	return &HMACSigner{secret: append([]byte(nil), secret...)}, nil
}

func (s *HMACSigner) Alg() string { return AlgorithmHS256 }
func (s *HMACSigner) KID() string { return "" }

func (s *HMACSigner) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *HMACSigner) Validate() error {
	if len(s.secret) < MinHMACSecretSize {
		return ErrWeakSecret
	}
	return nil
}
