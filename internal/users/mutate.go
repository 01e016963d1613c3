package users

import (
	"context"
	"errors"

	"github.com/ishyv/tx-discord-bot-sub008/internal/transition"
)

// Mutation is a user transition over a fixed set of document sections.
// Apply sees only those sections and returns their next values.
type Mutation[R any] struct {
	Name     string
	UserID   string
	Sections []Section
	Attempts int

	Apply   func(ctx context.Context, current Patch) (Patch, error)
	Project func(updated User, next Patch) R

	ConflictError string
	Hooks         transition.Hooks
}

var errMissingApply = errors.New("users: mutation without Apply")

// Mutate runs m against store with compare-and-swap retries.
func Mutate[R any](ctx context.Context, store Store, m Mutation[R]) (R, error) {
	sections := m.Sections
	return transition.RunUser(ctx, store, transition.UserSpec[User, Patch, Patch, R]{
		Name:     m.Name,
		UserID:   m.UserID,
		Attempts: m.Attempts,
		GetSnapshot: func(user User) Patch {
			return Of(user, sections...)
		},
		ComputeNext: func(ctx context.Context, snap Patch) (Patch, error) {
			if m.Apply == nil {
				return Patch{}, errMissingApply
			}
			// snap doubles as the expected value of the swap
			return m.Apply(ctx, snap.Clone())
		},
		Commit: func(ctx context.Context, userID string, expected, next Patch) (User, bool, error) {
			return store.CompareAndSwap(ctx, userID, expected, next)
		},
		Project: func(updated User, next, _ Patch) R {
			if m.Project == nil {
				var zero R
				return zero
			}
			return m.Project(updated, next)
		},
		ConflictError: m.ConflictError,
		Hooks:         m.Hooks,
	})
}
