package ratelimit

import (
	"errors"
	"testing"
	"time"
)

func TestAllow_Unlimited(t *testing.T) {
	l := NewLimiter(Config{})
	for i := 0; i < 1000; i++ {
		if err := l.Allow("anyone"); err != nil {
			t.Fatalf("unlimited limiter rejected request %d: %v", i, err)
		}
	}
}

func TestAllow_ExhaustsBurst(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 60, BurstSize: 3})

	for i := 0; i < 3; i++ {
		if err := l.Allow("alice"); err != nil {
			t.Fatalf("request %d rejected: %v", i, err)
		}
	}
	if err := l.Allow("alice"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("error = %v, want ErrRateLimited", err)
	}
}

func TestAllow_UsersIsolated(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 60, BurstSize: 1})

	if err := l.Allow("alice"); err != nil {
		t.Fatalf("alice first request: %v", err)
	}
	if err := l.Allow("alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("alice should be limited, got %v", err)
	}
	// Another user still has a full bucket.
	if err := l.Allow("bob"); err != nil {
		t.Errorf("bob should not share alice's bucket: %v", err)
	}
}

func TestAllow_Refills(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 60, BurstSize: 1})

	if err := l.Allow("alice"); err != nil {
		t.Fatalf("first request: %v", err)
	}

	// Rewind the bucket's refill time to simulate elapsed time.
	l.mu.Lock()
	l.buckets["alice"].refillAt = l.buckets["alice"].refillAt.Add(-2 * time.Second)
	l.mu.Unlock()

	if err := l.Allow("alice"); err != nil {
		t.Errorf("bucket should refill after elapsed time: %v", err)
	}
}

func TestRemaining(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 60, BurstSize: 5})

	if got := l.Remaining("alice"); got != 5 {
		t.Fatalf("fresh user Remaining = %d, want 5", got)
	}
	for i := 0; i < 2; i++ {
		if err := l.Allow("alice"); err != nil {
			t.Fatalf("request %d rejected: %v", i, err)
		}
	}
	if got := l.Remaining("alice"); got != 3 {
		t.Errorf("Remaining after 2 requests = %d, want 3", got)
	}
}
