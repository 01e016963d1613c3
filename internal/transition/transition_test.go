package transition

import (
	"context"
	"errors"
	"testing"
)

type counterDoc struct {
	version int
	value   int
}

type recorder struct {
	initial   int
	fresh     int
	snapshots int
	computes  int
	commits   int
	exhausted int

	computedFrom  []int
	committedWith []int
	exhaustedWith counterDoc
}

// newSpec returns a Spec over counterDoc where commit fails with a conflict
// for the first `conflicts` attempts.
func newSpec(rec *recorder, attempts, conflicts int) Spec[counterDoc, int, int, int] {
	stored := counterDoc{version: 1, value: 10}
	return Spec[counterDoc, int, int, int]{
		Name:     "test.increment",
		Attempts: attempts,
		GetInitial: func(context.Context) (counterDoc, error) {
			rec.initial++
			return stored, nil
		},
		GetFresh: func(_ context.Context, prev counterDoc, _ int) (counterDoc, error) {
			rec.fresh++
			return stored, nil
		},
		GetSnapshot: func(doc counterDoc) int {
			rec.snapshots++
			return doc.value
		},
		ComputeNext: func(_ context.Context, snap int) (int, error) {
			rec.computes++
			rec.computedFrom = append(rec.computedFrom, snap)
			return snap + 1, nil
		},
		Commit: func(_ context.Context, expected, next int) (counterDoc, bool, error) {
			rec.commits++
			rec.committedWith = append(rec.committedWith, expected)
			if rec.commits <= conflicts {
				// another writer got there first
				stored = counterDoc{version: stored.version + 1, value: stored.value + 5}
				return counterDoc{}, false, nil
			}
			if expected != stored.value {
				return counterDoc{}, false, nil
			}
			stored = counterDoc{version: stored.version + 1, value: next}
			return stored, true, nil
		},
		Project: func(updated counterDoc, next, snap int) int {
			return updated.value*1000 + snap
		},
		OnExhausted: func(_ context.Context, last counterDoc, _ int) (int, error) {
			rec.exhausted++
			rec.exhaustedWith = last
			return -1, nil
		},
	}
}

func TestRunCommitsOnFirstAttempt(t *testing.T) {
	rec := &recorder{}
	got, err := Run(context.Background(), newSpec(rec, 3, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 11*1000+10 {
		t.Fatalf("unexpected projection: %d", got)
	}
	if rec.commits != 1 || rec.fresh != 0 || rec.exhausted != 0 {
		t.Fatalf("expected a single commit, got commits=%d fresh=%d exhausted=%d", rec.commits, rec.fresh, rec.exhausted)
	}
}

func TestRunRetriesUntilCommit(t *testing.T) {
	rec := &recorder{}
	got, err := Run(context.Background(), newSpec(rec, 3, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.fresh != 2 {
		t.Fatalf("expected 2 re-reads, got %d", rec.fresh)
	}
	if rec.commits != 3 || rec.computes != 3 {
		t.Fatalf("expected 3 attempts, got commits=%d computes=%d", rec.commits, rec.computes)
	}
	// two foreign writes of +5 before our +1
	if got != 21*1000+20 {
		t.Fatalf("unexpected projection: %d", got)
	}
}

func TestRunBoundedRetries(t *testing.T) {
	rec := &recorder{}
	got, err := Run(context.Background(), newSpec(rec, 4, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != -1 {
		t.Fatalf("expected exhaustion result, got %d", got)
	}
	if rec.computes != 4 || rec.commits != 4 || rec.fresh != 4 {
		t.Fatalf("expected 4 of each, got computes=%d commits=%d fresh=%d", rec.computes, rec.commits, rec.fresh)
	}
	if rec.exhausted != 1 {
		t.Fatalf("expected one exhaustion call, got %d", rec.exhausted)
	}
	if rec.exhaustedWith.value != 30 {
		t.Fatalf("expected last known aggregate, got %+v", rec.exhaustedWith)
	}
}

func TestRunSnapshotMatchesCompute(t *testing.T) {
	rec := &recorder{}
	if _, err := Run(context.Background(), newSpec(rec, 5, 3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.computedFrom) != len(rec.committedWith) {
		t.Fatalf("compute/commit mismatch: %v vs %v", rec.computedFrom, rec.committedWith)
	}
	for i := range rec.computedFrom {
		if rec.computedFrom[i] != rec.committedWith[i] {
			t.Fatalf("attempt %d: computed from %d, committed with %d", i+1, rec.computedFrom[i], rec.committedWith[i])
		}
	}
	if rec.computedFrom[1] != 15 || rec.computedFrom[3] != 25 {
		t.Fatalf("snapshots not refreshed between attempts: %v", rec.computedFrom)
	}
}

func TestRunComputeErrorShortCircuits(t *testing.T) {
	rec := &recorder{}
	spec := newSpec(rec, 5, 100)
	boom := errors.New("insufficient funds")
	spec.ComputeNext = func(_ context.Context, snap int) (int, error) {
		rec.computes++
		if rec.computes == 2 {
			return 0, boom
		}
		return snap + 1, nil
	}

	if _, err := Run(context.Background(), spec); !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}
	if rec.computes != 2 || rec.commits != 1 || rec.exhausted != 0 {
		t.Fatalf("expected stop on attempt 2, got computes=%d commits=%d exhausted=%d", rec.computes, rec.commits, rec.exhausted)
	}
}

func TestRunCommitErrorShortCircuits(t *testing.T) {
	rec := &recorder{}
	spec := newSpec(rec, 5, 0)
	boom := errors.New("connection reset")
	spec.Commit = func(context.Context, int, int) (counterDoc, bool, error) {
		rec.commits++
		return counterDoc{}, false, boom
	}

	if _, err := Run(context.Background(), spec); !errors.Is(err, boom) {
		t.Fatalf("expected commit error, got %v", err)
	}
	if rec.commits != 1 || rec.fresh != 0 {
		t.Fatalf("commit error must not retry, got commits=%d fresh=%d", rec.commits, rec.fresh)
	}
}

func TestRunInitialErrorStopsEverything(t *testing.T) {
	rec := &recorder{}
	spec := newSpec(rec, 3, 0)
	boom := errors.New("store offline")
	spec.GetInitial = func(context.Context) (counterDoc, error) {
		return counterDoc{}, boom
	}

	if _, err := Run(context.Background(), spec); !errors.Is(err, boom) {
		t.Fatalf("expected initial read error, got %v", err)
	}
	if rec.snapshots+rec.computes+rec.commits+rec.fresh+rec.exhausted != 0 {
		t.Fatalf("no callback should run after a failed initial read: %+v", rec)
	}
}

func TestRunExhaustionWithSingleAttempt(t *testing.T) {
	rec := &recorder{}
	spec := newSpec(rec, 1, 0)
	original := counterDoc{version: 1, value: 10}
	spec.GetInitial = func(context.Context) (counterDoc, error) { return original, nil }
	spec.GetFresh = func(_ context.Context, prev counterDoc, _ int) (counterDoc, error) {
		rec.fresh++
		return prev, nil
	}
	spec.Commit = func(context.Context, int, int) (counterDoc, bool, error) {
		rec.commits++
		return counterDoc{}, false, nil
	}
	boom := errors.New("contended")
	spec.OnExhausted = func(_ context.Context, last counterDoc, snap int) (int, error) {
		rec.exhausted++
		if last != original || snap != original.value {
			t.Fatalf("expected original aggregate, got %+v / %d", last, snap)
		}
		return 0, boom
	}

	if _, err := Run(context.Background(), spec); !errors.Is(err, boom) {
		t.Fatalf("expected exhaustion policy error, got %v", err)
	}
	if rec.exhausted != 1 {
		t.Fatalf("expected one exhaustion call, got %d", rec.exhausted)
	}
}

func TestRunRejectsInvalidSpec(t *testing.T) {
	rec := &recorder{}
	spec := newSpec(rec, 0, 0)
	if _, err := Run(context.Background(), spec); !errors.Is(err, ErrInvalidSpec) {
		t.Fatalf("expected invalid spec for zero attempts, got %v", err)
	}
	spec = newSpec(rec, 1, 0)
	spec.Commit = nil
	if _, err := Run(context.Background(), spec); !errors.Is(err, ErrInvalidSpec) {
		t.Fatalf("expected invalid spec for missing commit, got %v", err)
	}
	if rec.initial != 0 {
		t.Fatalf("invalid spec must not read")
	}
}

type spyHooks struct {
	conflicts []int
	exhausted int
}

func (h *spyHooks) Conflict(_ context.Context, _ string, attempt int) {
	h.conflicts = append(h.conflicts, attempt)
}

func (h *spyHooks) Exhausted(context.Context, string, int) { h.exhausted++ }

func TestRunReportsHooks(t *testing.T) {
	rec := &recorder{}
	hooks := &spyHooks{}
	spec := newSpec(rec, 2, 100)
	spec.Hooks = hooks
	if _, err := Run(context.Background(), spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hooks.conflicts) != 2 || hooks.conflicts[1] != 2 || hooks.exhausted != 1 {
		t.Fatalf("unexpected hook calls: %+v", hooks)
	}
}
