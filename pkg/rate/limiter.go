// Package rate limits operations per key, such as per remote address.
package rate

import (
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// DefaultMaxKeys bounds how many keys a local limiter tracks. Keys beyond it
// evict the least recently seen, which resets their budget.
const DefaultMaxKeys = 65_536

// Limiter limits operations based on a provided key.
type Limiter interface {
	Allow(key string) (bool, error)
}

type localRateLimiter struct {
	limit rate.Limit
	burst int

	limiters *lru.Cache[string, *rate.Limiter]
}

// NewLocalRateLimiter returns an in memory limiter allowing limit operations
// per second for each key, with bursts of up to one second's worth.
func NewLocalRateLimiter(limit rate.Limit) Limiter {
	return NewLocalRateLimiterWithSize(limit, DefaultMaxKeys)
}

// NewLocalRateLimiterWithSize is NewLocalRateLimiter tracking at most maxKeys
// keys.
func NewLocalRateLimiterWithSize(limit rate.Limit, maxKeys int) Limiter {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	// New only fails for non-positive sizes.
	limiters, _ := lru.New[string, *rate.Limiter](maxKeys)

	return &localRateLimiter{
		limit:    limit,
		burst:    int(math.Max(1, math.Ceil(float64(limit)))),
		limiters: limiters,
	}
}

// Allow implements Limiter.Allow.
func (l *localRateLimiter) Allow(key string) (bool, error) {
	if limiter, ok := l.limiters.Get(key); ok {
		return limiter.Allow(), nil
	}

	// Another caller may have added the key since Get.
	fresh := rate.NewLimiter(l.limit, l.burst)
	if existing, ok, _ := l.limiters.PeekOrAdd(key, fresh); ok {
		return existing.Allow(), nil
	}
	return fresh.Allow(), nil
}

// NoLimiter never limits operations
type NoLimiter struct {
}

// Allow implements Limiter.Allow.
func (n *NoLimiter) Allow(_ string) (bool, error) {
	return true, nil
}
