package ratelimit

import (
	"testing"
	"time"
)

func TestSlidingWindowAdd(t *testing.T) {
	window := NewSlidingWindow(2 * time.Second)
	now := time.Now()
	if count := window.Add(now); count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}
	window.Add(now.Add(500 * time.Millisecond))
	if count := window.Count(now.Add(1 * time.Second)); count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	if count := window.Count(now.Add(3 * time.Second)); count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}
}

func TestLimiterAllow(t *testing.T) {
	limiter := NewLimiter(3, 5*time.Second)
	now := time.Now()
	for i := 0; i < 3; i++ {
		if !limiter.Allow("g1:u1", now.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("hit %d should be allowed", i+1)
		}
	}
	if limiter.Allow("g1:u1", now.Add(3*time.Second)) {
		t.Fatalf("fourth hit inside the window should be limited")
	}
	if !limiter.Allow("g1:u2", now.Add(3*time.Second)) {
		t.Fatalf("other keys must not share the window")
	}
	if count := limiter.Count("g1:u1", now.Add(9*time.Second)); count != 0 {
		t.Fatalf("expected window to drain, got %d", count)
	}
}

func TestLimiterSweep(t *testing.T) {
	limiter := NewLimiter(10, time.Second)
	now := time.Now()
	limiter.Hit("a", now)
	limiter.Hit("b", now.Add(900*time.Millisecond))

	if removed := limiter.Sweep(now.Add(1500 * time.Millisecond)); removed != 1 {
		t.Fatalf("expected 1 idle key, got %d", removed)
	}
	if limiter.Len() != 1 {
		t.Fatalf("expected 1 key left, got %d", limiter.Len())
	}
}
