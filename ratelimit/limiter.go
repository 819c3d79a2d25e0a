// Package ratelimit provides a per-key token-bucket limiter for the
// token endpoint, keyed by client ID or remote address.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// KeyedLimiter hands out an independent token bucket per key. Entries
// are created lazily and live for the lifetime of the process; the
// key space (registered clients plus a handful of addresses) is small
// enough that eviction is not worth the bookkeeping.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewKeyedLimiter creates a limiter allowing rps events per second
// with the given burst per key. A non-positive rps disables limiting.
func NewKeyedLimiter(rps float64, burst int) *KeyedLimiter {
	return &KeyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether an event for key may proceed now.
func (l *KeyedLimiter) Allow(key string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}
