package ratelimit_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimbusvault/authcore/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRedisStore(t *testing.T) ratelimit.WindowStore {
	t.Helper()
	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return ratelimit.NewRedisStore(client, "test:")
}

// stores runs fn against every WindowStore implementation.
func stores(t *testing.T, fn func(t *testing.T, newStore func(t *testing.T) ratelimit.WindowStore)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, func(*testing.T) ratelimit.WindowStore { return ratelimit.NewMemoryStore() })
	})
	t.Run("redis", func(t *testing.T) {
		fn(t, newRedisStore)
	})
}

func newLimiter(store ratelimit.WindowStore) (*ratelimit.Limiter, *clock) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	l := ratelimit.New(store, ratelimit.DefaultLimit, ratelimit.DefaultWindow)
	l.Now = c.Now
	return l, c
}

func TestLimiterSixthAttemptRejected(t *testing.T) {
	stores(t, func(t *testing.T, newStore func(t *testing.T) ratelimit.WindowStore) {
		l, c := newLimiter(newStore(t))
		ctx := context.Background()

		for i := range 5 {
			d, err := l.Allow(ctx, "10.0.0.1")
			require.NoError(t, err, "attempt %d", i+1)
			require.True(t, d.Allowed)
			require.Equal(t, 4-i, d.Remaining)
			c.Advance(time.Second)
		}

		d, err := l.Allow(ctx, "10.0.0.1")
		require.ErrorIs(t, err, ratelimit.ErrRateLimited)
		require.False(t, d.Allowed)
		require.Equal(t, 0, d.Remaining)
		// Oldest attempt was 5s ago.
		require.Equal(t, 55*time.Second, d.RetryAfter)
	})
}

func TestLimiterRejectionsAreNotRecorded(t *testing.T) {
	stores(t, func(t *testing.T, newStore func(t *testing.T) ratelimit.WindowStore) {
		l, c := newLimiter(newStore(t))
		ctx := context.Background()

		for range 5 {
			_, err := l.Allow(ctx, "client")
			require.NoError(t, err)
		}
		for range 20 {
			c.Advance(time.Second)
			_, err := l.Allow(ctx, "client")
			require.ErrorIs(t, err, ratelimit.ErrRateLimited)
		}

		// All five stamps are at t0; rejections in between do not extend it.
		c.Advance(40*time.Second + time.Millisecond)
		d, err := l.Allow(ctx, "client")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	})
}

func TestLimiterWindowBoundary(t *testing.T) {
	stores(t, func(t *testing.T, newStore func(t *testing.T) ratelimit.WindowStore) {
		l, c := newLimiter(newStore(t))
		ctx := context.Background()

		for range 5 {
			_, err := l.Allow(ctx, "client")
			require.NoError(t, err)
		}

		// An event exactly one window old still counts.
		c.Advance(ratelimit.DefaultWindow)
		_, err := l.Allow(ctx, "client")
		require.ErrorIs(t, err, ratelimit.ErrRateLimited)

		c.Advance(time.Millisecond)
		for i := range 5 {
			_, err := l.Allow(ctx, "client")
			require.NoError(t, err, "attempt %d after window", i+1)
		}
		_, err = l.Allow(ctx, "client")
		require.ErrorIs(t, err, ratelimit.ErrRateLimited)
	})
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	stores(t, func(t *testing.T, newStore func(t *testing.T) ratelimit.WindowStore) {
		l, _ := newLimiter(newStore(t))
		ctx := context.Background()

		for range 5 {
			_, err := l.Allow(ctx, "a")
			require.NoError(t, err)
		}
		_, err := l.Allow(ctx, "a")
		require.ErrorIs(t, err, ratelimit.ErrRateLimited)

		d, err := l.Allow(ctx, "b")
		require.NoError(t, err)
		require.Equal(t, 4, d.Remaining)
	})
}

func TestLimiterConcurrentSameKey(t *testing.T) {
	stores(t, func(t *testing.T, newStore func(t *testing.T) ratelimit.WindowStore) {
		l, _ := newLimiter(newStore(t))
		ctx := context.Background()

		var (
			wg      sync.WaitGroup
			allowed atomic.Int32
			limited atomic.Int32
		)
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := l.Allow(ctx, "shared")
				switch {
				case err == nil:
					allowed.Add(1)
				case errors.Is(err, ratelimit.ErrRateLimited):
					limited.Add(1)
				}
			}()
		}
		wg.Wait()

		require.Equal(t, int32(5), allowed.Load())
		require.Equal(t, int32(45), limited.Load())
	})
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Time, time.Duration, int) (ratelimit.Hit, error) {
	return ratelimit.Hit{}, errors.New("connection refused")
}

func TestLimiterStoreError(t *testing.T) {
	l := ratelimit.New(failingStore{}, 5, time.Minute)
	d, err := l.Allow(context.Background(), "x")
	require.Error(t, err)
	require.NotErrorIs(t, err, ratelimit.ErrRateLimited)
	require.False(t, d.Allowed)
}

func TestNewDefaults(t *testing.T) {
	l := ratelimit.New(ratelimit.NewMemoryStore(), 0, 0)
	require.Equal(t, ratelimit.DefaultLimit, l.Limit)
	require.Equal(t, ratelimit.DefaultWindow, l.Window)
}

func TestMemoryStorePrune(t *testing.T) {
	s := ratelimit.NewMemoryStore()
	ctx := context.Background()
	t0 := time.Unix(1_700_000_000, 0)

	_, err := s.Hit(ctx, "old", t0, time.Minute, 5)
	require.NoError(t, err)
	_, err = s.Hit(ctx, "fresh", t0.Add(50*time.Second), time.Minute, 5)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	removed := s.Prune(t0.Add(90*time.Second), time.Minute)
	require.Equal(t, 1, removed)
	require.Equal(t, 1, s.Len())

	// A pruned key starts over.
	hit, err := s.Hit(ctx, "old", t0.Add(90*time.Second), time.Minute, 5)
	require.NoError(t, err)
	require.Equal(t, 1, hit.Count)
}

func TestMemoryStorePruneRacesWithHits(t *testing.T) {
	s := ratelimit.NewMemoryStore()
	ctx := context.Background()
	t0 := time.Unix(1_700_000_000, 0)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.Hit(ctx, "k", t0.Add(time.Duration(i)*time.Hour), time.Minute, 100)
			require.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			s.Prune(t0.Add(time.Duration(i)*time.Hour), time.Minute)
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, s.Len(), 1)
}

func TestRedisStoreSetsExpiry(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := ratelimit.NewRedisStore(client, "")
	_, err = s.Hit(context.Background(), "10.0.0.9", time.Now(), time.Minute, 5)
	require.NoError(t, err)

	require.True(t, mini.Exists("authcore:rl:10.0.0.9"))
	require.Equal(t, time.Minute, mini.TTL("authcore:rl:10.0.0.9"))

	mini.FastForward(time.Minute + time.Second)
	require.False(t, mini.Exists("authcore:rl:10.0.0.9"))
}
