package store

import (
	"context"
	"errors"
	"time"

	"github.com/nimbusvault/authcore/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface implemented by the sqlite and
// memory drivers. The revocation list can be served by a different backend
// (redis) so the service takes Credentials and Revocations separately.
type Store interface {
	Credentials() Credentials
	Revocations() Revocations

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}

// Credentials is the credential store. Implementations must be safe for
// concurrent use and must honour ctx deadlines.
type Credentials interface {
	// LookupByUsername is used during login. Returns ErrNotFound.
	LookupByUsername(ctx context.Context, username string) (domain.Credential, error)

	// LookupByID is used during refresh to confirm the identity still exists.
	LookupByID(ctx context.Context, identityID string) (domain.Credential, error)

	// Insert stores a new credential. Returns ErrAlreadyExists when the
	// username is taken.
	Insert(ctx context.Context, c domain.Credential) error

	// UpdatePasswordHash replaces the hash for identityID.
	UpdatePasswordHash(ctx context.Context, identityID, hash string) error

	// Delete removes the credential. Outstanding refresh tokens stop working
	// because LookupByID no longer finds the identity.
	Delete(ctx context.Context, identityID string) error

	// Count returns the number of stored credentials.
	Count(ctx context.Context) (int64, error)
}

// Revocations is the token denylist, keyed by jti.
type Revocations interface {
	// Revoke records jti until expiresAt. It reports whether this call added
	// the entry; false means jti was already revoked. The check and the
	// insert are one atomic step, so of several concurrent callers exactly
	// one gets true.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error)

	// IsRevoked reports whether jti is on the list.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// DeleteExpired drops entries whose token has expired by now and returns
	// how many were removed. Backends with native expiry may return 0.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
