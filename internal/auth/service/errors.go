package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/nimbusvault/authcore/pkg/jwtx"
)

var (
	ErrInvalidCredentials  = errors.New("invalid_credentials")
	ErrRateLimited         = errors.New("rate_limited")
	ErrTokenInvalid        = errors.New("token_invalid")
	ErrTokenExpired        = errors.New("token_expired")
	ErrIdentityNotFound    = errors.New("identity_not_found")
	ErrUpstreamUnavailable = errors.New("upstream_unavailable")
	ErrUsernameTaken       = errors.New("username_taken")
	ErrInvalidInput        = errors.New("invalid_input")
)

// RateLimitError carries how long the client has to wait and the limit it
// hit. It matches ErrRateLimited under errors.Is.
type RateLimitError struct {
	RetryAfter time.Duration
	Limit      int
	Window     time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// upstream marks err as a backend failure while keeping the cause for logs.
func upstream(err error) error {
	return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// tokenError collapses verifier errors into the two token outcomes.
func tokenError(err error) error {
	if errors.Is(err, jwtx.ErrExpired) {
		return ErrTokenExpired
	}
	return ErrTokenInvalid
}
