// Package ratelimit provides per-user request throttling for the HTTP
// gateway. Each user gets an independent token bucket, refilled lazily on
// access, so one dashboard user cannot starve another. No background
// goroutines.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a user has exhausted their bucket.
var ErrRateLimited = errors.New("rate limit exceeded")

// Config configures the limiter.
type Config struct {
	RequestsPerMinute int // Tokens added per minute. 0 = unlimited (Allow always succeeds).
	BurstSize         int // Maximum tokens in a bucket. 0 = defaults to RequestsPerMinute.
}

// Limiter throttles requests per user ID.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	perSec  float64 // refill rate, tokens per second
	burst   float64 // bucket capacity
}

type bucket struct {
	level    float64
	refillAt time.Time // last refill timestamp
}

// NewLimiter creates a limiter from cfg. A zero RequestsPerMinute disables
// limiting entirely.
func NewLimiter(cfg Config) *Limiter {
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = cfg.RequestsPerMinute
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		perSec:  float64(cfg.RequestsPerMinute) / 60.0,
		burst:   float64(burst),
	}
}

// Allow consumes one token from the user's bucket, refilling it first
// based on elapsed time. Returns ErrRateLimited when the bucket is empty.
func (l *Limiter) Allow(userID string) error {
	if l.perSec <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refill(userID, time.Now())
	if b.level < 1 {
		return ErrRateLimited
	}
	b.level--
	return nil
}

// Remaining reports the whole tokens currently available to the user.
// A user with no bucket yet has a full burst available.
func (l *Limiter) Remaining(userID string) int {
	if l.perSec <= 0 {
		return int(l.burst)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return int(l.refill(userID, time.Now()).level)
}

// refill advances a user's bucket to now, creating it full on first use.
// Callers must hold l.mu.
func (l *Limiter) refill(userID string, now time.Time) *bucket {
	b, ok := l.buckets[userID]
	if !ok {
		b = &bucket{level: l.burst, refillAt: now}
		l.buckets[userID] = b
		return b
	}

	b.level += now.Sub(b.refillAt).Seconds() * l.perSec
	if b.level > l.burst {
		b.level = l.burst
	}
	b.refillAt = now
	return b
}
