package jwtx

import (
	"errors"
	"fmt"
	"time"
)

// MinTokenTTL is the shortest lifetime Issue accepts.
const MinTokenTTL = time.Second

var ErrInvalidTTL = errors.New("jwtx: token ttl must be at least one second")

// Issuer mints access and refresh tokens for an identity.
type Issuer struct {
	Signer     Signer
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewIssuer returns an Issuer with the default lifetimes.
func NewIssuer(s Signer, issuer string) *Issuer {
	return &Issuer{
		Signer:     s,
		Issuer:     issuer,
		AccessTTL:  DefaultAccessTokenTTL,
		RefreshTTL: DefaultRefreshTokenTTL,
	}
}

// Issue signs a token of kind for identity. A zero ttl selects the
// configured lifetime for that kind.
func (i *Issuer) Issue(identity Identity, kind Kind, ttl time.Duration) (string, Claims, error) {
	if !kind.Valid() {
		return "", Claims{}, fmt.Errorf("jwtx: cannot issue token of kind %q", kind)
	}
	if identity.Subject == "" {
		return "", Claims{}, errors.New("jwtx: identity has no subject")
	}
	if ttl == 0 {
		ttl = i.ttlFor(kind)
	}
	if ttl < MinTokenTTL {
		return "", Claims{}, ErrInvalidTTL
	}

	claims := NewClaims(identity, kind, i.Issuer, ttl, i.now())
	token, err := i.Signer.Sign(claims)
	if err != nil {
		return "", Claims{}, fmt.Errorf("jwtx: sign %s token: %w", kind, err)
	}
	return token, claims, nil
}

// IssueAccess mints an access token with the configured lifetime.
func (i *Issuer) IssueAccess(identity Identity) (string, Claims, error) {
	return i.Issue(identity, KindAccess, 0)
}

// IssueRefresh mints a refresh token with the configured lifetime.
func (i *Issuer) IssueRefresh(identity Identity) (string, Claims, error) {
	return i.Issue(identity, KindRefresh, 0)
}

func (i *Issuer) ttlFor(kind Kind) time.Duration {
	if kind == KindRefresh {
		if i.RefreshTTL > 0 {
			return i.RefreshTTL
		}
		return DefaultRefreshTokenTTL
	}
	if i.AccessTTL > 0 {
		return i.AccessTTL
	}
	return DefaultAccessTokenTTL
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}
