package jwtx

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestNewClaims(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewClaims(Identity{Subject: "alice", ID: "id-1"}, KindAccess, "authcore", DefaultAccessTokenTTL, now)

	require.Equal(t, "alice", c.Subject)
	require.Equal(t, "id-1", c.IdentityID)
	require.Equal(t, "authcore", c.Issuer)
	require.Equal(t, KindAccess, c.Kind)
	require.Equal(t, now.Add(30*time.Minute), c.ExpiresAtTime())
	require.NotEmpty(t, c.ID)
	require.Equal(t, Identity{Subject: "alice", ID: "id-1"}, c.Identity())

	other := NewClaims(Identity{Subject: "alice"}, KindAccess, "authcore", time.Minute, now)
	require.NotEqual(t, c.ID, other.ID)
}

func TestNewClaimsSubSecondNow(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		wantIat int64
		wantExp int64
	}{
		{name: "whole second", now: time.Unix(1_700_000_000, 0), wantIat: 1_700_000_000, wantExp: 1_700_000_060},
		{name: "half second", now: time.Unix(1_700_000_000, 500_000_000), wantIat: 1_700_000_000, wantExp: 1_700_000_061},
		{name: "just before the next second", now: time.Unix(1_700_000_000, 999_999_999), wantIat: 1_700_000_000, wantExp: 1_700_000_061},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClaims(Identity{Subject: "alice"}, KindAccess, "authcore", time.Minute, tt.now)
			require.Equal(t, tt.wantIat, c.IssuedAt.Unix())
			require.Equal(t, tt.wantExp, c.ExpiresAt.Unix())
			require.False(t, c.ExpiresAtTime().Before(tt.now.Add(time.Minute)), "exp must not precede now+ttl")
			require.NoError(t, c.validateTimes(tt.now.Add(time.Minute), 0))
		})
	}
}

func TestValidateTimes(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	at := func(d time.Duration) *jwt.NumericDate { return jwt.NewNumericDate(now.Add(d)) }

	tests := []struct {
		name   string
		iat    *jwt.NumericDate
		nbf    *jwt.NumericDate
		exp    *jwt.NumericDate
		leeway time.Duration
		want   error
	}{
		{name: "valid", iat: at(-time.Minute), exp: at(time.Minute)},
		{name: "exactly at expiry", iat: at(-time.Minute), exp: at(0)},
		{name: "one second past expiry", iat: at(-time.Minute), exp: at(-time.Second), want: ErrExpired},
		{name: "leeway covers expiry", iat: at(-time.Minute), exp: at(-time.Second), leeway: 5 * time.Second},
		{name: "missing exp", iat: at(0), want: ErrInvalidClaim},
		{name: "missing iat", exp: at(time.Minute), want: ErrInvalidClaim},
		{name: "exp equals iat", iat: at(0), exp: at(0), want: ErrInvalidClaim},
		{name: "issued in the future", iat: at(time.Minute), exp: at(time.Hour), want: ErrNotYetValid},
		{name: "leeway covers future iat", iat: at(2 * time.Second), exp: at(time.Hour), leeway: 5 * time.Second},
		{name: "nbf in the future", iat: at(0), nbf: at(time.Minute), exp: at(time.Hour), want: ErrNotYetValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Claims{RegisteredClaims: jwt.RegisteredClaims{IssuedAt: tt.iat, NotBefore: tt.nbf, ExpiresAt: tt.exp}}
			err := c.validateTimes(now, tt.leeway)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateKind(t *testing.T) {
	access := Claims{Kind: KindAccess}
	require.NoError(t, access.ValidateKind(KindAccess))
	require.NoError(t, access.ValidateKind(KindAny))
	require.ErrorIs(t, access.ValidateKind(KindRefresh), ErrKindMismatch)

	unknown := Claims{Kind: "session"}
	require.ErrorIs(t, unknown.ValidateKind(KindAny), ErrInvalidClaim)
}

func TestExpiredIsNotInvalid(t *testing.T) {
	require.NotErrorIs(t, ErrExpired, ErrInvalid)
	for _, err := range []error{ErrMalformed, ErrInvalidSig, ErrUnknownKID, ErrAlgMismatch, ErrIssuer, ErrKindMismatch, ErrInvalidClaim, ErrNotYetValid} {
		require.ErrorIs(t, err, ErrInvalid)
	}
}
