// Package ratelimit tracks per-key hit bursts over a sliding window.
package ratelimit

import (
	"sync"
	"time"
)

type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	windows map[string]*SlidingWindow
}

// NewLimiter allows up to limit hits per key inside window.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		window:  window,
		limit:   limit,
		windows: make(map[string]*SlidingWindow),
	}
}

// Hit records one event for key and returns the count inside the window.
func (l *Limiter) Hit(key string, now time.Time) int {
	return l.get(key).Add(now)
}

// Allow records a hit and reports whether key is still within the limit.
func (l *Limiter) Allow(key string, now time.Time) bool {
	if l.limit <= 0 {
		return true
	}
	return l.Hit(key, now) <= l.limit
}

func (l *Limiter) Limit() int { return l.limit }

func (l *Limiter) Count(key string, now time.Time) int {
	l.mu.Lock()
	window := l.windows[key]
	l.mu.Unlock()
	if window == nil {
		return 0
	}
	return window.Count(now)
}

// Sweep drops windows with no hit inside the window and returns how many
// keys were removed.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, window := range l.windows {
		if window.Count(now) == 0 {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func (l *Limiter) get(key string) *SlidingWindow {
	l.mu.Lock()
	defer l.mu.Unlock()
	window := l.windows[key]
	if window == nil {
		window = NewSlidingWindow(l.window)
		l.windows[key] = window
	}
	return window
}
