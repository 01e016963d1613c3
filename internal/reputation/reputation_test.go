package reputation

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ishyv/tx-discord-bot-sub008/internal/cooldown"
	"github.com/ishyv/tx-discord-bot-sub008/internal/users"
)

type brokenStore struct {
	*users.MemoryStore
}

var errBroken = errors.New("broken")

func (brokenStore) CompareAndSwap(context.Context, string, users.Patch, users.Patch) (users.User, bool, error) {
	return users.User{}, false, errBroken
}

func newService(store users.Store) (*Service, *cooldown.Manager) {
	manager := cooldown.NewManager(cooldown.NewMemoryStore(), "test")
	return New(store, manager, time.Hour, zap.NewNop()), manager
}

func TestGiveAppliesCooldown(t *testing.T) {
	svc, _ := newService(users.NewMemoryStore())
	ctx := context.Background()

	change, err := svc.Give(ctx, "g1", "alice", "bob")
	if err != nil {
		t.Fatalf("give: %v", err)
	}
	if change.Before != 0 || change.After != 1 {
		t.Fatalf("unexpected change: %+v", change)
	}

	_, err = svc.Give(ctx, "g1", "alice", "carol")
	var cd *CooldownError
	if !errors.As(err, &cd) || !errors.Is(err, ErrOnCooldown) {
		t.Fatalf("expected cooldown, got %v", err)
	}
	if cd.Remaining <= 0 || cd.Remaining > time.Hour {
		t.Fatalf("unexpected remaining %v", cd.Remaining)
	}

	if _, err := svc.Give(ctx, "g2", "alice", "bob"); err != nil {
		t.Fatalf("cooldown is per guild: %v", err)
	}
	if rep, _ := svc.Get(ctx, "bob"); rep != 2 {
		t.Fatalf("expected 2 reputation, got %d", rep)
	}
}

func TestGiveRejectsSelf(t *testing.T) {
	svc, _ := newService(users.NewMemoryStore())
	if _, err := svc.Give(context.Background(), "g1", "alice", "alice"); !errors.Is(err, ErrSelfReputation) {
		t.Fatalf("expected self reputation error, got %v", err)
	}
}

func TestGiveReleasesCooldownOnFailure(t *testing.T) {
	svc, manager := newService(brokenStore{users.NewMemoryStore()})
	ctx := context.Background()

	if _, err := svc.Give(ctx, "g1", "alice", "bob"); !errors.Is(err, errBroken) {
		t.Fatalf("expected store error, got %v", err)
	}
	left, _ := manager.Remaining(ctx, cooldownBucket, "g1:alice")
	if left != 0 {
		t.Fatalf("cooldown should be released, %v left", left)
	}
}

func TestTakeFloorsAtZero(t *testing.T) {
	svc, _ := newService(users.NewMemoryStore())
	ctx := context.Background()
	_, _ = svc.Give(ctx, "g1", "alice", "bob")

	change, err := svc.Take(ctx, "bob", 5)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if change.Before != 1 || change.After != 0 {
		t.Fatalf("unexpected change: %+v", change)
	}
	if _, err := svc.Take(ctx, "bob", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}
