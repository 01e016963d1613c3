package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ishyv/tx-discord-bot-sub008/internal/cooldown"
	"github.com/ishyv/tx-discord-bot-sub008/internal/users"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

type failingCooldowns struct{}

var errCooldownDown = errors.New("cooldown store down")

func (failingCooldowns) Acquire(context.Context, string, time.Duration) (time.Duration, bool, error) {
	return 0, false, errCooldownDown
}
func (failingCooldowns) Remaining(context.Context, string) (time.Duration, error) { return 0, nil }
func (failingCooldowns) Reset(context.Context, string) error                      { return nil }

func TestRecordMessageRewardsOncePerCooldown(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	cdStore := cooldown.NewMemoryStore()
	cdStore.WithClock(clock)
	store := users.NewMemoryStore()
	tracker := New(store, cooldown.NewManager(cdStore, "test"), Config{Reward: 5, Cooldown: time.Minute}, zap.NewNop())
	ctx := context.Background()

	res, err := tracker.RecordMessage(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.Messages != 1 || res.MessagesBefore != 0 || res.Rewarded != 5 {
		t.Fatalf("unexpected first result: %+v", res)
	}

	res, _ = tracker.RecordMessage(ctx, "g1", "u1")
	if res.Messages != 2 || res.Rewarded != 0 {
		t.Fatalf("second message should not be rewarded: %+v", res)
	}

	clock.now = clock.now.Add(time.Minute)
	res, _ = tracker.RecordMessage(ctx, "g1", "u1")
	if res.Messages != 3 || res.Rewarded != 5 {
		t.Fatalf("reward should be available again: %+v", res)
	}

	user, _, _ := store.Get(ctx, "u1")
	if user.Economy.Hand != 10 || user.Stats.Messages != 3 {
		t.Fatalf("unexpected document: %+v", user)
	}
}

func TestRecordMessageCountsWithoutCooldownStore(t *testing.T) {
	tracker := New(users.NewMemoryStore(), cooldown.NewManager(failingCooldowns{}, "test"), Config{Reward: 5, Cooldown: time.Minute}, zap.NewNop())
	res, err := tracker.RecordMessage(context.Background(), "g1", "u1")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.Messages != 1 || res.Rewarded != 0 {
		t.Fatalf("expected message counted without reward, got %+v", res)
	}
}
