package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps windows in process. The map lock only guards lookup and
// insert; each key has its own mutex for the read-prune-append.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
}

type windowEntry struct {
	mu     sync.Mutex
	stamps []time.Time
	// dead is set by Prune after the entry leaves the map. A writer that
	// raced with Prune must look the key up again.
	dead bool
}

var _ WindowStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*windowEntry)}
}

func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, window time.Duration, limit int) (Hit, error) {
	cutoff := now.Add(-window)
	for {
		e := s.entry(key)
		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			continue
		}

		e.stamps = pruneBefore(e.stamps, cutoff)
		hit := Hit{}
		if len(e.stamps) < limit {
			e.stamps = append(e.stamps, now)
			hit.Allowed = true
		}
		hit.Count = len(e.stamps)
		if len(e.stamps) > 0 {
			hit.Oldest = e.stamps[0]
		}
		e.mu.Unlock()
		return hit, nil
	}
}

func (s *MemoryStore) entry(key string) *windowEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		e = &windowEntry{}
		s.entries[key] = e
	}
	return e
}

// Prune drops every window with no events newer than now-window and returns
// how many keys were removed. Housekeeping calls this to bound memory.
func (s *MemoryStore) Prune(now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		e.mu.Lock()
		e.stamps = pruneBefore(e.stamps, cutoff)
		if len(e.stamps) == 0 {
			e.dead = true
			delete(s.entries, key)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// pruneBefore drops stamps strictly before cutoff. stamps is ordered.
func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && stamps[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[i:]...)
}
