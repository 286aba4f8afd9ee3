package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/nimbusvault/authcore/pkg/idx"
	"github.com/redis/go-redis/v9"
)

// hitScript is the read-prune-append on a sorted set scored by unix millis.
// The caller supplies the time so every replica agrees on the clock used.
//
// KEYS[1] window key
// ARGV[1] now (ms), ARGV[2] cutoff (ms), ARGV[3] limit, ARGV[4] member,
// ARGV[5] ttl (ms)
var hitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. ARGV[2])
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, ARGV[5])

local oldest = -1
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
  oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

// RedisStore shares windows between replicas. Keys expire one window after
// their last event.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ WindowStore = (*RedisStore)(nil)

// NewRedisStore stores windows under prefix+key.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "authcore:rl:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (Hit, error) {
	nowMs := now.UnixMilli()
	cutoff := now.Add(-window).UnixMilli()
	ttl := max(window.Milliseconds(), 1)

	res, err := hitScript.Run(ctx, s.client, []string{s.prefix + key},
		nowMs, cutoff, limit, fmt.Sprintf("%d-%s", nowMs, idx.New()), ttl,
	).Int64Slice()
	if err != nil {
		return Hit{}, fmt.Errorf("redis window: %w", err)
	}
	if len(res) != 3 {
		return Hit{}, fmt.Errorf("redis window: unexpected reply length %d", len(res))
	}

	hit := Hit{Allowed: res[0] == 1, Count: int(res[1])}
	if res[2] >= 0 {
		hit.Oldest = time.UnixMilli(res[2])
	}
	return hit, nil
}
