package cache

import (
	"math"
	"sync"
	"time"
)

// RateLimitResult reports the outcome of a sliding-window check.
type RateLimitResult struct {
	IsLimited         bool      `json:"isLimited"`
	Remaining         int       `json:"remaining"`
	ResetTime         time.Time `json:"resetTime"`
	RetryAfterSeconds int       `json:"retryAfterSeconds"`
}

// rateLimiter tracks request timestamps per identifier. Windows are pruned
// lazily on every check and in bulk by the cache sweep; the store is
// uncapped because pruning bounds its growth.
type rateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	timestamps []time.Time
	span       time.Duration
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// check prunes expired timestamps, then either records the request
// (remaining capacity) or rejects it with a retry hint derived from the
// oldest retained timestamp.
func (r *rateLimiter) check(identifier string, limit int, span time.Duration) RateLimitResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	w, ok := r.windows[identifier]
	if !ok {
		w = &window{span: span}
		r.windows[identifier] = w
	}
	w.span = span

	cutoff := now.Add(-span)
	kept := w.timestamps[:0]
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.timestamps = kept

	if len(w.timestamps) >= limit {
		oldest := w.timestamps[0]
		reset := oldest.Add(span)
		retryAfter := int(math.Ceil(reset.Sub(now).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		return RateLimitResult{
			IsLimited:         true,
			Remaining:         0,
			ResetTime:         reset,
			RetryAfterSeconds: retryAfter,
		}
	}

	w.timestamps = append(w.timestamps, now)
	return RateLimitResult{
		Remaining: limit - len(w.timestamps),
		ResetTime: w.timestamps[0].Add(span),
	}
}

// prune drops fully expired windows. Returns the number removed.
func (r *rateLimiter) prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, w := range r.windows {
		cutoff := now.Add(-w.span)
		live := false
		for _, ts := range w.timestamps {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(r.windows, id)
			removed++
		}
	}
	return removed
}

func (r *rateLimiter) windowCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}
