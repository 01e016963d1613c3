package autorole

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/ishyv/tx-discord-bot-sub008/internal/storage"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	ctx := context.Background()
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	rules := []storage.AutoroleRule{
		{GuildID: "g1", RoleID: "member", Trigger: "join"},
		{GuildID: "g1", RoleID: "trusted", Trigger: "reputation", Threshold: 5},
		{GuildID: "g1", RoleID: "veteran", Trigger: "reputation", Threshold: 20},
		{GuildID: "g1", RoleID: "chatty", Trigger: "messages", Threshold: 100},
		{GuildID: "g2", RoleID: "other", Trigger: "reputation", Threshold: 1},
	}
	for _, rule := range rules {
		if err := store.UpsertAutoroleRule(ctx, rule); err != nil {
			t.Fatalf("upsert rule: %v", err)
		}
	}
	return NewEngine(StoreSource{Store: store}, zap.NewNop())
}

func TestOnJoin(t *testing.T) {
	engine := newEngine(t)
	roles, err := engine.OnJoin(context.Background(), "g1")
	if err != nil {
		t.Fatalf("on join: %v", err)
	}
	if !reflect.DeepEqual(roles, []string{"member"}) {
		t.Fatalf("unexpected join roles %v", roles)
	}
}

func TestOnProgressGrantsOnlyOnCrossing(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	roles, _ := engine.OnProgress(ctx, "g1", TriggerReputation, 4, 5)
	if !reflect.DeepEqual(roles, []string{"trusted"}) {
		t.Fatalf("expected trusted, got %v", roles)
	}
	roles, _ = engine.OnProgress(ctx, "g1", TriggerReputation, 5, 6)
	if len(roles) != 0 {
		t.Fatalf("threshold already crossed, got %v", roles)
	}
	roles, _ = engine.OnProgress(ctx, "g1", TriggerReputation, 0, 25)
	if !reflect.DeepEqual(roles, []string{"trusted", "veteran"}) {
		t.Fatalf("expected both roles, got %v", roles)
	}
	roles, _ = engine.OnProgress(ctx, "g1", TriggerReputation, 25, 3)
	if len(roles) != 0 {
		t.Fatalf("decrease must not grant roles, got %v", roles)
	}
	roles, _ = engine.OnProgress(ctx, "g1", TriggerMessages, 99, 100)
	if !reflect.DeepEqual(roles, []string{"chatty"}) {
		t.Fatalf("expected chatty, got %v", roles)
	}
}

func TestOnProgressRejectsJoinTrigger(t *testing.T) {
	engine := newEngine(t)
	if _, err := engine.OnProgress(context.Background(), "g1", TriggerJoin, 0, 1); !errors.Is(err, ErrUnknownTrigger) {
		t.Fatalf("expected unknown trigger, got %v", err)
	}
}

func TestParseTrigger(t *testing.T) {
	if trigger, err := ParseTrigger("messages"); err != nil || trigger != TriggerMessages {
		t.Fatalf("unexpected parse result %q %v", trigger, err)
	}
	if _, err := ParseTrigger("voice"); !errors.Is(err, ErrUnknownTrigger) {
		t.Fatalf("expected unknown trigger, got %v", err)
	}
}

func TestSeedUpsertsRules(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()
	source := StoreSource{Store: store}

	rules := []Rule{
		{GuildID: "g1", RoleID: "member", Trigger: TriggerJoin},
		{GuildID: "g1", RoleID: "regular", Trigger: TriggerMessages, Threshold: 500},
	}
	if err := source.Seed(ctx, rules); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rules[1].Threshold = 300
	if err := source.Seed(ctx, rules); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	engine := NewEngine(source, zap.NewNop())
	roles, _ := engine.OnJoin(ctx, "g1")
	if !reflect.DeepEqual(roles, []string{"member"}) {
		t.Fatalf("unexpected join roles %v", roles)
	}
	roles, _ = engine.OnProgress(ctx, "g1", TriggerMessages, 299, 300)
	if !reflect.DeepEqual(roles, []string{"regular"}) {
		t.Fatalf("expected the reseeded threshold, got %v", roles)
	}

	err = source.Seed(ctx, []Rule{{GuildID: "g1", RoleID: "x", Trigger: "voice"}})
	if !errors.Is(err, ErrUnknownTrigger) {
		t.Fatalf("expected unknown trigger, got %v", err)
	}
}
