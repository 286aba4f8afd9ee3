// Package redis keeps the revocation denylist in redis so every replica sees
// a logout immediately. Entries expire on their own when the token would.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimbusvault/authcore/internal/auth/store"
	goredis "github.com/redis/go-redis/v9"
)

const defaultPrefix = "authcore:revoked:"

type Revocations struct {
	client goredis.UniversalClient
	prefix string

	// Now overrides the clock, for tests.
	Now func() time.Time
}

var _ store.Revocations = (*Revocations)(nil)

func NewRevocations(client goredis.UniversalClient, prefix string) *Revocations {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Revocations{client: client, prefix: prefix}
}

// Revoke claims jti with SETNX. A token that has already expired is not
// stored and reports false: verification rejects it without our help.
func (r *Revocations) Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return false, nil
	}
	added, err := r.client.SetNX(ctx, r.prefix+jti, expiresAt.Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis revoke: %w", err)
	}
	return added, nil
}

func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := r.client.Get(ctx, r.prefix+jti).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, goredis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("redis revocation lookup: %w", err)
	}
}

// DeleteExpired is a no-op: keys carry their own TTL.
func (r *Revocations) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Ping checks the connection, for readiness.
func (r *Revocations) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Revocations) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
