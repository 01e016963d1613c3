package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindow counts hits inside a trailing window. Callers pass
// timestamps from the same clock; time.Now values carry a monotonic reading.
type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   []time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return &SlidingWindow{window: window}
}

func (w *SlidingWindow) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.trimLocked(now)
	w.hits = append(w.hits, now)
	return len(w.hits)
}

func (w *SlidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.trimLocked(now)
	return len(w.hits)
}

// Last returns the most recent hit, zero if none was recorded.
func (w *SlidingWindow) Last() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.hits) == 0 {
		return time.Time{}
	}
	return w.hits[len(w.hits)-1]
}

func (w *SlidingWindow) trimLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for _, hit := range w.hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	w.hits = w.hits[idx:]
}
