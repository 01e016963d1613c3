// Package cooldown gates repeated actions per subject for a fixed duration.
// State lives behind a Store so several processes can share it.
package cooldown

import (
	"context"
	"errors"
	"strings"
	"time"
)

type Store interface {
	// Acquire starts a cooldown of ttl on key unless one is already running.
	// It returns the time left on the running cooldown when not acquired.
	Acquire(ctx context.Context, key string, ttl time.Duration) (remaining time.Duration, acquired bool, err error)
	Remaining(ctx context.Context, key string) (time.Duration, error)
	Reset(ctx context.Context, key string) error
}

var ErrInvalidDuration = errors.New("cooldown: duration must be positive")

type Result struct {
	Allowed   bool
	Remaining time.Duration
}

type Manager struct {
	store  Store
	prefix string
}

func NewManager(store Store, prefix string) *Manager {
	return &Manager{store: store, prefix: strings.TrimSuffix(prefix, ":")}
}

// Key composes the store key for bucket and subject.
func (m *Manager) Key(bucket, subject string) string {
	if m.prefix == "" {
		return bucket + ":" + subject
	}
	return m.prefix + ":" + bucket + ":" + subject
}

// Try starts the cooldown for subject in bucket if none is running.
func (m *Manager) Try(ctx context.Context, bucket, subject string, d time.Duration) (Result, error) {
	if d <= 0 {
		return Result{}, ErrInvalidDuration
	}
	remaining, acquired, err := m.store.Acquire(ctx, m.Key(bucket, subject), d)
	if err != nil {
		return Result{}, err
	}
	return Result{Allowed: acquired, Remaining: remaining}, nil
}

func (m *Manager) Remaining(ctx context.Context, bucket, subject string) (time.Duration, error) {
	return m.store.Remaining(ctx, m.Key(bucket, subject))
}

func (m *Manager) Reset(ctx context.Context, bucket, subject string) error {
	return m.store.Reset(ctx, m.Key(bucket, subject))
}
