package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nimbusvault/authcore/pkg/idx"
)

// Default lifetimes for the two token kinds.
const (
	DefaultAccessTokenTTL  = 30 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Kind separates access tokens from refresh tokens. It is fixed at mint time
// and checked on every verification that asks for a specific kind.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"

	// KindAny disables the kind check in Verify.
	KindAny Kind = ""
)

// Valid reports whether k is one of the concrete token kinds.
func (k Kind) Valid() bool {
	return k == KindAccess || k == KindRefresh
}

// Identity is who a token speaks for: the login name (token subject) and the
// opaque, stable identity id from the credential store.
type Identity struct {
	Subject string `json:"subject"`
	ID      string `json:"identity_id"`
}

// Claims is the payload of every token we mint.
type Claims struct {
	jwt.RegisteredClaims

	// IdentityID is the credential store's id for the subject. It survives
	// username changes and lets refresh detect a deleted then recreated user.
	IdentityID string `json:"iid"`

	Kind Kind `json:"kind"`
}

// NewClaims builds claims for identity valid from now until at least now+ttl.
// NumericDate has whole-second precision: iat is truncated and exp is rounded
// up, so a token never expires before ttl has elapsed.
func NewClaims(identity Identity, kind Kind, issuer string, ttl time.Duration, now time.Time) Claims {
	exp := now.Add(ttl)
	if t := exp.Truncate(time.Second); !t.Equal(exp) {
		exp = t.Add(time.Second)
	}
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   identity.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        NewJTI(),
		},
		IdentityID: identity.ID,
		Kind:       kind,
	}
}

// NewJTI returns a unique token id. ULIDs keep revocation rows sortable by
// mint time.
func NewJTI() string {
	return idx.New().String()
}

// Identity returns the identity the claims were minted for.
func (c Claims) Identity() Identity {
	return Identity{Subject: c.Subject, ID: c.IdentityID}
}

// ExpiresAtTime returns exp or the zero time when absent.
func (c Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// validateTimes checks iat/nbf/exp against now. Leeway widens the window by
// the same amount on both ends.
func (c *Claims) validateTimes(now time.Time, leeway time.Duration) error {
	if c.IssuedAt == nil || c.ExpiresAt == nil {
		return ErrInvalidClaim
	}
	if !c.ExpiresAt.After(c.IssuedAt.Time) {
		return ErrInvalidClaim
	}
	if c.IssuedAt.After(now.Add(leeway)) {
		return ErrNotYetValid
	}
	if c.NotBefore != nil && c.NotBefore.After(now.Add(leeway)) {
		return ErrNotYetValid
	}
	if now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	return nil
}

// ValidateIssuer checks iss when expected is set.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateKind checks the token kind. KindAny only requires a known kind.
func (c *Claims) ValidateKind(want Kind) error {
	if !c.Kind.Valid() {
		return ErrInvalidClaim
	}
	if want != KindAny && c.Kind != want {
		return ErrKindMismatch
	}
	return nil
}
