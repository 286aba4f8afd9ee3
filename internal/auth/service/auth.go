package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nimbusvault/authcore/internal/auth/domain"
	"github.com/nimbusvault/authcore/internal/auth/metrics"
	"github.com/nimbusvault/authcore/internal/auth/store"
	"github.com/nimbusvault/authcore/pkg/cryptox"
	"github.com/nimbusvault/authcore/pkg/jwtx"
	"github.com/nimbusvault/authcore/pkg/ratelimit"
	"github.com/nimbusvault/authcore/pkg/slogx"
)

// DefaultLookupTimeout bounds every credential store call.
const DefaultLookupTimeout = 2 * time.Second

// Recorder counts outcomes. *metrics.Metrics implements it.
type Recorder interface {
	ObserveLogin(result string)
	ObserveRefresh(result string)
}

// AuthService turns credentials into tokens and refresh tokens into access
// tokens. All fields except Metrics and Limiter are required.
type AuthService struct {
	Credentials store.Credentials
	Revocations store.Revocations
	Hasher      cryptox.Hasher
	Limiter     *ratelimit.Limiter
	Issuer      *jwtx.Issuer
	Verifier    jwtx.Verifier

	LookupTimeout time.Duration

	// RotateRefresh revokes the presented refresh token and mints a new one
	// on every refresh.
	RotateRefresh bool

	Metrics Recorder

	// Now overrides the clock, for tests.
	Now func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// Login checks the client's rate limit, then the credentials, and mints an
// access and refresh pair. clientKey identifies the caller for rate
// limiting, usually its address.
//
// Unknown users and wrong passwords are indistinguishable: both return
// ErrInvalidCredentials after a full hash verification.
func (s *AuthService) Login(ctx context.Context, clientKey, username, password string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx).With(slog.String("username", username), slog.String("client", clientKey))

	if s.Limiter != nil {
		d, err := s.Limiter.Allow(ctx, clientKey)
		switch {
		case errors.Is(err, ratelimit.ErrRateLimited):
			l.Warn("login rate limited", slog.Duration("retry_after", d.RetryAfter))
			s.observeLogin(metrics.ResultRateLimited)
			return domain.TokenPair{}, &RateLimitError{
				RetryAfter: d.RetryAfter,
				Limit:      s.Limiter.Limit,
				Window:     s.Limiter.Window,
			}
		case err != nil:
			l.Error("login rate limiter unavailable", slog.Any("error", err))
			s.observeLogin(metrics.ResultUnavailable)
			return domain.TokenPair{}, upstream(err)
		}
	}

	if username == "" || password == "" {
		s.observeLogin(metrics.ResultInvalid)
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	lookupCtx, cancel := s.lookupContext(ctx)
	cred, err := s.Credentials.LookupByUsername(lookupCtx, username)
	cancel()
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.Hasher.Verify(password, s.dummy())
		l.Info("login failed", slog.String("reason", "unknown_user"))
		s.observeLogin(metrics.ResultInvalid)
		return domain.TokenPair{}, ErrInvalidCredentials
	case err != nil:
		l.Error("credential lookup failed", slog.Any("error", err))
		s.observeLogin(metrics.ResultUnavailable)
		return domain.TokenPair{}, upstream(err)
	}

	if !s.Hasher.Verify(password, cred.PasswordHash) {
		l.Info("login failed", slog.String("reason", "bad_password"))
		s.observeLogin(metrics.ResultInvalid)
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	identity := jwtx.Identity{Subject: cred.Username, ID: cred.IdentityID}
	pair, err := s.mintPair(identity)
	if err != nil {
		l.Error("token issue failed", slog.Any("error", err))
		s.observeLogin(metrics.ResultError)
		return domain.TokenPair{}, err
	}

	l.Info("login succeeded", slog.String("identity_id", cred.IdentityID))
	s.observeLogin(metrics.ResultSuccess)
	return pair, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token must not be revoked and its identity must still exist under the
// same username. With RotateRefresh the pair is replaced.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	claims, err := s.Verifier.Verify(refreshToken, jwtx.KindRefresh)
	if err != nil {
		terr := tokenError(err)
		l.Info("refresh rejected", slog.String("reason", err.Error()))
		if errors.Is(terr, ErrTokenExpired) {
			s.observeRefresh(metrics.ResultExpired)
		} else {
			s.observeRefresh(metrics.ResultInvalid)
		}
		return domain.TokenPair{}, terr
	}
	l = l.With(slog.String("username", claims.Subject), slog.String("jti", claims.ID))

	lookupCtx, cancel := s.lookupContext(ctx)
	defer cancel()

	revoked, err := s.Revocations.IsRevoked(lookupCtx, claims.ID)
	if err != nil {
		l.Error("revocation lookup failed", slog.Any("error", err))
		s.observeRefresh(metrics.ResultUnavailable)
		return domain.TokenPair{}, upstream(err)
	}
	if revoked {
		l.Info("refresh rejected", slog.String("reason", "revoked"))
		s.observeRefresh(metrics.ResultInvalid)
		return domain.TokenPair{}, ErrTokenInvalid
	}

	cred, err := s.Credentials.LookupByID(lookupCtx, claims.IdentityID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		l.Info("refresh rejected", slog.String("reason", "identity_gone"))
		s.observeRefresh(metrics.ResultInvalid)
		return domain.TokenPair{}, ErrIdentityNotFound
	case err != nil:
		l.Error("credential lookup failed", slog.Any("error", err))
		s.observeRefresh(metrics.ResultUnavailable)
		return domain.TokenPair{}, upstream(err)
	}
	if cred.Username != claims.Subject {
		l.Info("refresh rejected", slog.String("reason", "identity_mismatch"))
		s.observeRefresh(metrics.ResultInvalid)
		return domain.TokenPair{}, ErrIdentityNotFound
	}

	identity := claims.Identity()
	var pair domain.TokenPair
	if s.RotateRefresh {
		// The revocation is the claim on this token. A concurrent refresh
		// with the same token that got here first wins; this one is a replay.
		var claimed bool
		claimed, err = s.Revocations.Revoke(lookupCtx, claims.ID, claims.ExpiresAtTime())
		if err != nil {
			l.Error("revoking rotated refresh token failed", slog.Any("error", err))
			s.observeRefresh(metrics.ResultUnavailable)
			return domain.TokenPair{}, upstream(err)
		}
		if !claimed {
			l.Warn("refresh rejected", slog.String("reason", "replayed"))
			s.observeRefresh(metrics.ResultInvalid)
			return domain.TokenPair{}, ErrTokenInvalid
		}
		pair, err = s.mintPair(identity)
	} else {
		pair, err = s.mintAccess(identity)
	}
	if err != nil {
		l.Error("token issue failed", slog.Any("error", err))
		s.observeRefresh(metrics.ResultError)
		return domain.TokenPair{}, err
	}

	l.Info("refresh succeeded", slog.Bool("rotated", s.RotateRefresh))
	s.observeRefresh(metrics.ResultSuccess)
	return pair, nil
}

// Logout revokes a refresh token until it expires. Expired tokens need no
// revocation and succeed. Invalid tokens return ErrTokenInvalid.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	l := slogx.FromContext(ctx)

	claims, err := s.Verifier.Verify(refreshToken, jwtx.KindRefresh)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return nil
		}
		l.Info("logout with invalid token", slog.String("reason", err.Error()))
		return ErrTokenInvalid
	}

	lookupCtx, cancel := s.lookupContext(ctx)
	defer cancel()
	if _, err := s.Revocations.Revoke(lookupCtx, claims.ID, claims.ExpiresAtTime()); err != nil {
		l.Error("revoke failed", slog.String("jti", claims.ID), slog.Any("error", err))
		return upstream(err)
	}
	l.Info("logged out", slog.String("username", claims.Subject), slog.String("jti", claims.ID))
	return nil
}

func (s *AuthService) mintPair(identity jwtx.Identity) (domain.TokenPair, error) {
	pair, err := s.mintAccess(identity)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, claims, err := s.Issuer.IssueRefresh(identity)
	if err != nil {
		return domain.TokenPair{}, err
	}
	pair.RefreshToken = refresh
	pair.RefreshExpiresAt = claims.ExpiresAtTime()
	return pair, nil
}

func (s *AuthService) mintAccess(identity jwtx.Identity) (domain.TokenPair, error) {
	access, claims, err := s.Issuer.IssueAccess(identity)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{AccessToken: access, AccessExpiresAt: claims.ExpiresAtTime()}, nil
}

func (s *AuthService) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.LookupTimeout
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// dummy returns a hash of a throwaway password so unknown usernames cost
// the same as a wrong password.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.Hasher.Hash("authcore-timing-equaliser")
	})
	return s.dummyHash
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AuthService) observeLogin(result string) {
	if s.Metrics != nil {
		s.Metrics.ObserveLogin(result)
	}
}

func (s *AuthService) observeRefresh(result string) {
	if s.Metrics != nil {
		s.Metrics.ObserveRefresh(result)
	}
}
