package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimbusvault/authcore/internal/auth/store/drivers/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisRevocations(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	revs := redis.NewRevocations(client, "")
	revs.Now = func() time.Time { return now }
	require.NoError(t, revs.Ping(ctx))

	ok, err := revs.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, ok)

	added, err := revs.Revoke(ctx, "jti-1", now.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, added)
	added, err = revs.Revoke(ctx, "jti-1", now.Add(time.Hour))
	require.NoError(t, err)
	require.False(t, added, "second revoke must not claim the token again")
	ok, err = revs.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, time.Hour, mini.TTL("authcore:revoked:jti-1"))

	// Already expired tokens are not stored.
	added, err = revs.Revoke(ctx, "jti-old", now.Add(-time.Second))
	require.NoError(t, err)
	require.False(t, added)
	require.False(t, mini.Exists("authcore:revoked:jti-old"))

	mini.FastForward(time.Hour + time.Second)
	ok, err = revs.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, ok)

	n, err := revs.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRedisRevocationsUnavailable(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mini.Close()

	_, err = redis.NewRevocations(client, "").IsRevoked(context.Background(), "jti")
	require.Error(t, err)
}
