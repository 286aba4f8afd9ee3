package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nimbusvault/authcore/pkg/cryptox"
)

// Supported signing algorithms. HS256 exists only for deployments that
// cannot distribute a public key; it makes every verifier a minter.
const (
	AlgorithmEdDSA = "EdDSA"
	AlgorithmES256 = "ES256"
	AlgorithmRS256 = "RS256"
	AlgorithmHS256 = "HS256"
)

// AsymmetricAlgorithms lists the algorithms a verifier-only service may
// safely accept.
var AsymmetricAlgorithms = []string{AlgorithmEdDSA, AlgorithmES256, AlgorithmRS256}

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	Validate() error
}

// PublicKeyProvider is implemented by signers whose verification half can be
// handed to other services.
type PublicKeyProvider interface {
	PublicKey() crypto.PublicKey
	PublicJWK() JWK
}

// NewSigner loads a PEM private key and signs with alg. The key type must
// match the algorithm. The kid is the key's JWK thumbprint.
func NewSigner(alg string, pemKey []byte) (Signer, error) {
	key, err := cryptox.ParsePrivateKeyPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: load signing key: %w", err)
	}
	return NewSignerFromKey(alg, key)
}

// NewSignerFromKey wraps an in-memory private key.
func NewSignerFromKey(alg string, key crypto.Signer) (Signer, error) {
	method, err := signingMethod(alg)
	if err != nil {
		return nil, err
	}
	if err := checkKeyForAlg(alg, key.Public()); err != nil {
		return nil, err
	}
	jwk, err := NewJWK("", alg, key.Public())
	if err != nil {
		return nil, err
	}

	s := &asymmetricSigner{method: method, key: key, jwk: jwk}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

type asymmetricSigner struct {
	method jwt.SigningMethod
	key    crypto.Signer
	jwk    JWK
}

func (s *asymmetricSigner) Alg() string                 { return s.method.Alg() }
func (s *asymmetricSigner) KID() string                 { return s.jwk.Kid }
func (s *asymmetricSigner) PublicKey() crypto.PublicKey { return s.key.Public() }
func (s *asymmetricSigner) PublicJWK() JWK              { return s.jwk }

// Sign takes your claims and turns them into a signed JWT string.
func (s *asymmetricSigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.jwk.Kid
	return t.SignedString(s.key)
}

// Validate does a quick sanity check to make sure we actually have keys.
func (s *asymmetricSigner) Validate() error {
	if s.key == nil {
		return errors.New("jwtx: nil signing key")
	}
	if s.jwk.Kid == "" {
		return errors.New("jwtx: signer has no kid")
	}
	return checkKeyForAlg(s.method.Alg(), s.key.Public())
}

func signingMethod(alg string) (jwt.SigningMethod, error) {
	switch alg {
	case AlgorithmEdDSA:
		return jwt.SigningMethodEdDSA, nil
	case AlgorithmES256:
		return jwt.SigningMethodES256, nil
	case AlgorithmRS256:
		return jwt.SigningMethodRS256, nil
	case AlgorithmHS256:
		return nil, fmt.Errorf("jwtx: %s is symmetric, use NewHMACSigner", alg)
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q", alg)
	}
}

// checkKeyForAlg rejects key and algorithm pairings that would either fail
// at sign time or allow algorithm confusion at verify time.
func checkKeyForAlg(alg string, pub crypto.PublicKey) error {
	switch alg {
	case AlgorithmEdDSA:
		k, ok := pub.(ed25519.PublicKey)
		if !ok || len(k) != ed25519.PublicKeySize {
			return fmt.Errorf("jwtx: %s requires an Ed25519 key, got %T", alg, pub)
		}
	case AlgorithmES256:
		k, ok := pub.(*ecdsa.PublicKey)
		if !ok || k.Curve != elliptic.P256() {
			return fmt.Errorf("jwtx: %s requires a P-256 key, got %T", alg, pub)
		}
	case AlgorithmRS256:
		k, ok := pub.(*rsa.PublicKey)
		if !ok {
			return fmt.Errorf("jwtx: %s requires an RSA key, got %T", alg, pub)
		}
		if k.N.BitLen() < cryptox.MinRSABits {
			return fmt.Errorf("jwtx: RSA key must be at least %d bits", cryptox.MinRSABits)
		}
	default:
		return fmt.Errorf("jwtx: unsupported algorithm %q", alg)
	}
	return nil
}
