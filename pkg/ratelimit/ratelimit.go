// Package ratelimit implements a sliding-window counter: a key may record at
// most Limit events in any Window. Rejected attempts are not recorded, so a
// client that keeps hammering is let back in exactly Window after its oldest
// accepted attempt.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Defaults for login attempts per client address.
const (
	DefaultLimit  = 5
	DefaultWindow = time.Minute
)

var ErrRateLimited = errors.New("ratelimit: too many attempts")

// Hit is what a WindowStore reports for one check.
type Hit struct {
	Allowed bool
	// Count is the number of events in the window after the check.
	Count int
	// Oldest is the earliest event still in the window, zero when empty.
	Oldest time.Time
}

// WindowStore performs the read-prune-append for one key atomically. Events
// older than now-window are discarded; if fewer than limit remain, now is
// recorded. Calls for the same key are serialized. Calls for different keys
// must not contend on a shared lock.
type WindowStore interface {
	Hit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (Hit, error)
}

// Decision is the outcome of Allow.
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is how long until the oldest event leaves the window. Zero
	// when allowed.
	RetryAfter time.Duration
}

// Limiter applies Limit/Window to keys using a WindowStore.
type Limiter struct {
	store  WindowStore
	Limit  int
	Window time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// New returns a limiter. Non-positive limit or window fall back to the
// defaults.
func New(store WindowStore, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{store: store, Limit: limit, Window: window}
}

// Allow checks key and records the attempt when it is within the limit. A
// rejection returns ErrRateLimited alongside the Decision. Store failures are
// returned wrapped; callers should fail closed.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	hit, err := l.store.Hit(ctx, key, now, l.Window, l.Limit)
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: store: %w", err)
	}

	d := Decision{Allowed: hit.Allowed, Remaining: max(l.Limit-hit.Count, 0)}
	if hit.Allowed {
		return d, nil
	}

	d.RetryAfter = time.Second
	if !hit.Oldest.IsZero() {
		// Events at exactly now-window are still counted, so the slot frees
		// just after oldest+window.
		if wait := hit.Oldest.Add(l.Window).Sub(now); wait > 0 {
			d.RetryAfter = wait
		}
	}
	return d, ErrRateLimited
}

func (l *Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}
