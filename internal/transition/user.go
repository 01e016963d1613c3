package transition

import (
	"context"
	"errors"
	"fmt"
)

// DefaultUserAttempts is used by RunUser when UserSpec.Attempts is zero.
const DefaultUserAttempts = 3

// ErrConflict matches every exhaustion failure produced by RunUser.
var ErrConflict = errors.New("transition: conflict")

// ConflictError reports that a user document stayed contended for every
// attempt. Callers surface it as "please try again".
type ConflictError struct {
	UserID   string
	Attempts int
	Message  string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("user %s was updated concurrently, please try again", e.UserID)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// UserStore is the read side of a store keyed by user id.
type UserStore[A any] interface {
	// Ensure returns the document for userID, creating the default one if
	// it does not exist yet.
	Ensure(ctx context.Context, userID string) (A, error)
	// Get returns the document for userID and whether it was found.
	Get(ctx context.Context, userID string) (A, bool, error)
}

// UserSpec is the user-keyed form of Spec. Reads are bound to a UserStore
// and exhaustion always fails with a *ConflictError.
type UserSpec[A, S, N, R any] struct {
	Name     string
	UserID   string
	Attempts int

	GetSnapshot func(user A) S
	ComputeNext func(ctx context.Context, snap S) (N, error)
	Commit      func(ctx context.Context, userID string, expected S, next N) (A, bool, error)
	Project     func(updated A, next N, snap S) R

	// ConflictError is the message of the error returned on exhaustion.
	ConflictError string
	Hooks         Hooks
}

// RunUser runs spec against the document of spec.UserID in store.
func RunUser[A, S, N, R any](ctx context.Context, store UserStore[A], spec UserSpec[A, S, N, R]) (R, error) {
	var zero R
	if store == nil {
		return zero, errors.Join(ErrInvalidSpec, errors.New("nil user store"))
	}
	if spec.UserID == "" {
		return zero, errors.Join(ErrInvalidSpec, errors.New("empty user id"))
	}
	if spec.Commit == nil {
		return zero, errors.Join(ErrInvalidSpec, errors.New("missing callback"))
	}
	attempts := spec.Attempts
	if attempts == 0 {
		attempts = DefaultUserAttempts
	}
	userID := spec.UserID

	return Run(ctx, Spec[A, S, N, R]{
		Name:     spec.Name,
		Attempts: attempts,
		Hooks:    spec.Hooks,
		GetInitial: func(ctx context.Context) (A, error) {
			return store.Ensure(ctx, userID)
		},
		GetFresh: func(ctx context.Context, prev A, _ S) (A, error) {
			fresh, found, err := store.Get(ctx, userID)
			if err != nil {
				return prev, err
			}
			if !found {
				return prev, nil
			}
			return fresh, nil
		},
		GetSnapshot: spec.GetSnapshot,
		ComputeNext: spec.ComputeNext,
		Commit: func(ctx context.Context, expected S, next N) (A, bool, error) {
			return spec.Commit(ctx, userID, expected, next)
		},
		Project: spec.Project,
		OnExhausted: func(context.Context, A, S) (R, error) {
			return zero, &ConflictError{UserID: userID, Attempts: attempts, Message: spec.ConflictError}
		},
	})
}
