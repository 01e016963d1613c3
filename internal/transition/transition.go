// Package transition runs optimistic compare-and-swap updates against
// aggregates held in a shared store.
//
// A transition reads the aggregate, projects it to a snapshot, computes the
// proposed next state from that snapshot and asks the store to commit it only
// if the stored state still matches the snapshot. Conflicts are retried up to
// a fixed number of attempts; every other failure ends the transition.
package transition

import (
	"context"
	"errors"
)

// ErrInvalidSpec is returned when a Spec is missing a callback or has a
// non-positive attempt count.
var ErrInvalidSpec = errors.New("transition: invalid spec")

// Spec describes one optimistic transition.
//
// A is the aggregate read from the store, S the snapshot compared by the
// store on commit, N the proposed next value and R the value handed back to
// the caller.
type Spec[A, S, N, R any] struct {
	// Name identifies the transition in hooks and logs.
	Name string
	// Attempts bounds the number of commit attempts. Must be > 0.
	Attempts int

	GetInitial func(ctx context.Context) (A, error)
	// GetFresh re-reads the aggregate after a conflict. prev and prevSnap are
	// the values used by the failed attempt.
	GetFresh    func(ctx context.Context, prev A, prevSnap S) (A, error)
	GetSnapshot func(agg A) S
	// ComputeNext must not have side effects: it runs again on every attempt.
	ComputeNext func(ctx context.Context, snap S) (N, error)
	// Commit persists next only if the stored state still matches expected.
	// It reports false with a nil error when it lost the race.
	Commit func(ctx context.Context, expected S, next N) (A, bool, error)
	// Project builds the caller result from the committed aggregate, the
	// committed value and the snapshot it was computed from.
	Project func(updated A, next N, snap S) R
	// OnExhausted decides the outcome once every attempt hit a conflict. It
	// receives the last aggregate read and its snapshot.
	OnExhausted func(ctx context.Context, last A, lastSnap S) (R, error)

	Hooks Hooks
}

func (s Spec[A, S, N, R]) validate() error {
	switch {
	case s.Attempts <= 0:
		return errors.Join(ErrInvalidSpec, errors.New("attempts must be positive"))
	case s.GetInitial == nil, s.GetFresh == nil, s.GetSnapshot == nil,
		s.ComputeNext == nil, s.Commit == nil, s.Project == nil, s.OnExhausted == nil:
		return errors.Join(ErrInvalidSpec, errors.New("missing callback"))
	}
	return nil
}

// Run executes the transition described by spec.
//
// The snapshot handed to Commit on attempt k is always the snapshot that
// ComputeNext saw on attempt k. Errors from any callback are returned as is
// and are never retried.
func Run[A, S, N, R any](ctx context.Context, spec Spec[A, S, N, R]) (R, error) {
	var zero R
	if err := spec.validate(); err != nil {
		return zero, err
	}
	hooks := spec.Hooks
	if hooks == nil {
		hooks = NopHooks{}
	}

	current, err := spec.GetInitial(ctx)
	if err != nil {
		return zero, err
	}
	snap := spec.GetSnapshot(current)

	for attempt := 1; attempt <= spec.Attempts; attempt++ {
		next, err := spec.ComputeNext(ctx, snap)
		if err != nil {
			return zero, err
		}

		updated, committed, err := spec.Commit(ctx, snap, next)
		if err != nil {
			return zero, err
		}
		if committed {
			return spec.Project(updated, next, snap), nil
		}

		hooks.Conflict(ctx, spec.Name, attempt)
		fresh, err := spec.GetFresh(ctx, current, snap)
		if err != nil {
			return zero, err
		}
		current = fresh
		snap = spec.GetSnapshot(current)
	}

	hooks.Exhausted(ctx, spec.Name, spec.Attempts)
	return spec.OnExhausted(ctx, current, snap)
}
