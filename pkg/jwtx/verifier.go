package jwtx

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalid is the root of every rejection except expiry. Callers that only
// need the invalid/expired split test errors.Is(err, ErrInvalid) and
// errors.Is(err, ErrExpired); the finer sentinels are for logs and metrics.
var ErrInvalid = errors.New("jwtx: invalid token")

var (
	ErrMalformed    = fmt.Errorf("%w: malformed", ErrInvalid)
	ErrInvalidSig   = fmt.Errorf("%w: bad signature", ErrInvalid)
	ErrUnknownKID   = fmt.Errorf("%w: unknown kid", ErrInvalid)
	ErrAlgMismatch  = fmt.Errorf("%w: algorithm mismatch", ErrInvalid)
	ErrIssuer       = fmt.Errorf("%w: issuer mismatch", ErrInvalid)
	ErrKindMismatch = fmt.Errorf("%w: wrong token kind", ErrInvalid)
	ErrInvalidClaim = fmt.Errorf("%w: invalid claims", ErrInvalid)
	ErrNotYetValid  = fmt.Errorf("%w: not yet valid", ErrInvalid)

	// ErrExpired is deliberately outside ErrInvalid. A client with an
	// expired access token should refresh; one with an invalid token should
	// log in again.
	ErrExpired = errors.New("jwtx: token expired")
)

// Verifier validates a JWT and gives you back the claims if it's legit.
// want selects the required kind; KindAny skips that check.
type Verifier interface {
	Verify(token string, want Kind) (Claims, error)
}

// VerifyOptions captures common expectations used by verifiers.
type VerifyOptions struct {
	// Issuer the token must have (claims.iss). Empty means "don't care".
	Issuer string

	// Leeway allows small clock skew when validating exp/nbf/iat. Zero
	// means exact comparison.
	Leeway time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// TokenVerifier checks signatures against a KeySet, or against a shared
// secret in HS256 mode, then validates claims.
type TokenVerifier struct {
	keys   *KeySet
	secret []byte
	parser *jwt.Parser
	opts   VerifyOptions
}

var _ Verifier = (*TokenVerifier)(nil)

// NewVerifier verifies asymmetric tokens whose kid is in keys. The KeySet is
// consulted on every call so keys added later are honoured.
func NewVerifier(keys *KeySet, opts VerifyOptions) *TokenVerifier {
	return &TokenVerifier{
		keys:   keys,
		parser: newParser(AsymmetricAlgorithms),
		opts:   opts,
	}
}

// NewHMACVerifier verifies HS256 tokens with secret.
func NewHMACVerifier(secret []byte, opts VerifyOptions) (*TokenVerifier, error) {
	if len(secret) < MinHMACSecretSize {
		return nil, ErrWeakSecret
	}
	return &TokenVerifier{
		secret: append([]byte(nil), secret...),
		parser: newParser([]string{AlgorithmHS256}),
		opts:   opts,
	}, nil
}

// NewVerifierForSigner returns a verifier that accepts exactly what s mints.
func NewVerifierForSigner(s Signer, opts VerifyOptions) (*TokenVerifier, error) {
	if h, ok := s.(*HMACSigner); ok {
		return NewHMACVerifier(h.secret, opts)
	}
	keys := NewKeySet()
	if err := keys.AddSigner(s); err != nil {
		return nil, err
	}
	return NewVerifier(keys, opts), nil
}

// Keys returns the verifier's KeySet, nil in HS256 mode.
func (v *TokenVerifier) Keys() *KeySet { return v.keys }

func newParser(methods []string) *jwt.Parser {
	// Time claims are validated by Claims.validateTimes so that expiry is
	// reported after the kind check and leeway stays symmetric.
	return jwt.NewParser(jwt.WithValidMethods(methods), jwt.WithoutClaimsValidation())
}

// Verify validates the JWT string and returns its parsed Claims. Checks run
// in a fixed order: signature, issuer, subject, kind, then the time window.
func (v *TokenVerifier) Verify(tokenStr string, want Kind) (Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return Claims{}, ErrMalformed
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, v.keyFunc)
	if err != nil {
		return Claims{}, mapParseError(err)
	}
	if !token.Valid {
		return Claims{}, ErrInvalidSig
	}

	if err := claims.ValidateIssuer(v.opts.Issuer); err != nil {
		return Claims{}, err
	}
	if claims.Subject == "" {
		return Claims{}, ErrInvalidClaim
	}
	if err := claims.ValidateKind(want); err != nil {
		return Claims{}, err
	}
	if err := claims.validateTimes(v.now(), v.opts.Leeway); err != nil {
		return Claims{}, err
	}
	return *claims, nil
}

func (v *TokenVerifier) keyFunc(t *jwt.Token) (any, error) {
	if v.secret != nil {
		return v.secret, nil
	}

	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, ErrUnknownKID
	}
	entry, err := v.keys.lookup(kid)
	if err != nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownKID, kid)
	}
	if entry.alg != t.Method.Alg() {
		return nil, ErrAlgMismatch
	}
	return entry.pub, nil
}

func (v *TokenVerifier) now() time.Time {
	if v.opts.Now != nil {
		return v.opts.Now()
	}
	return time.Now()
}

// mapParseError folds jwt library errors onto our sentinels.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKID):
		return ErrUnknownKID
	case errors.Is(err, ErrAlgMismatch):
		return ErrAlgMismatch
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSig
	default:
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
}
