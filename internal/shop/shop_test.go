package shop

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/ishyv/tx-discord-bot-sub008/internal/content"
	"github.com/ishyv/tx-discord-bot-sub008/internal/transition"
	"github.com/ishyv/tx-discord-bot-sub008/internal/users"
)

func ptr[T any](v T) *T { return &v }

func testCatalog() *content.Pack {
	return &content.Pack{
		Items: content.ItemsPack{SchemaVersion: 1, Items: []content.Item{
			{ID: "copper_ore", Name: "Copper Ore", Description: "ore", MaxStack: ptr(int64(10))},
			{ID: "iron_sword", Name: "Iron Sword", Description: "sword", CanStack: ptr(false)},
			{ID: "relic", Name: "Relic", Description: "old"},
		}},
		Store: &content.StorePack{SchemaVersion: 1, Items: []content.StoreItem{
			{ItemID: "copper_ore", Name: "Copper Ore", BuyPrice: 5, SellPrice: 2, PurchaseLimit: 8},
			{ItemID: "iron_sword", Name: "Iron Sword", BuyPrice: 50, SellPrice: 20, Stock: ptr(int64(1))},
			{ItemID: "relic", Name: "Relic", BuyPrice: 1, SellPrice: 1, Available: ptr(false)},
		}},
	}
}

func fund(t *testing.T, store *users.MemoryStore, userID string, hand int64) {
	t.Helper()
	ctx := context.Background()
	user, err := store.Ensure(ctx, userID)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	expected := users.Of(user, users.SectionEconomy)
	next := expected.Clone()
	next.Economy.Hand = hand
	if _, ok, err := store.CompareAndSwap(ctx, userID, expected, next); err != nil || !ok {
		t.Fatalf("fund: ok=%v err=%v", ok, err)
	}
}

func TestBuyChargesAndStocksInOneSwap(t *testing.T) {
	store := users.NewMemoryStore()
	svc := New(store, testCatalog(), zap.NewNop())
	fund(t, store, "u1", 100)

	receipt, err := svc.Buy(context.Background(), "u1", "copper_ore", 4)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if receipt.Total != 20 || receipt.Hand != 80 || receipt.Holding != 4 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	user, _, _ := store.Get(context.Background(), "u1")
	if user.Economy.Hand != 80 || user.Inventory["copper_ore"] != 4 {
		t.Fatalf("unexpected document %+v", user)
	}
}

func TestBuyRefusesOverflowingTotal(t *testing.T) {
	catalog := testCatalog()
	catalog.Items.Items = append(catalog.Items.Items, content.Item{ID: "gem", Name: "Gem", Description: "shiny", MaxStack: ptr(int64(math.MaxInt64))})
	catalog.Store.Items = append(catalog.Store.Items, content.StoreItem{ItemID: "gem", Name: "Gem", BuyPrice: 1 << 40, SellPrice: 1 << 40})
	store := users.NewMemoryStore()
	svc := New(store, catalog, zap.NewNop())
	fund(t, store, "u1", 100)

	if _, err := svc.Buy(context.Background(), "u1", "gem", 1<<30); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected invalid quantity, got %v", err)
	}
	if _, err := svc.Sell(context.Background(), "u1", "gem", 1<<30); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected invalid quantity, got %v", err)
	}
	user, _, _ := store.Get(context.Background(), "u1")
	if user.Economy.Hand != 100 || len(user.Inventory) != 0 {
		t.Fatalf("document changed: %+v", user)
	}
}

func TestBuyRules(t *testing.T) {
	store := users.NewMemoryStore()
	svc := New(store, testCatalog(), zap.NewNop())
	ctx := context.Background()
	fund(t, store, "u1", 1000)

	if _, err := svc.Buy(ctx, "u1", "copper_ore", 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected invalid quantity, got %v", err)
	}
	if _, err := svc.Buy(ctx, "u1", "relic", 1); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, err := svc.Buy(ctx, "u1", "iron_sword", 2); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected out of stock, got %v", err)
	}
	if _, err := svc.Buy(ctx, "u1", "copper_ore", 9); !errors.Is(err, ErrPurchaseLimit) {
		t.Fatalf("expected purchase limit, got %v", err)
	}
	if _, err := svc.Buy(ctx, "u1", "missing", 1); !errors.Is(err, content.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := svc.Buy(ctx, "u1", "copper_ore", 8); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := svc.Buy(ctx, "u1", "copper_ore", 3); !errors.Is(err, ErrStackFull) {
		t.Fatalf("expected full stack, got %v", err)
	}
	if _, err := svc.Buy(ctx, "u1", "iron_sword", 1); err != nil {
		t.Fatalf("buy sword: %v", err)
	}
	if _, err := svc.Buy(ctx, "u1", "iron_sword", 1); !errors.Is(err, ErrStackFull) {
		t.Fatalf("non stackable item should hold one, got %v", err)
	}

	user, _, _ := store.Get(ctx, "u1")
	if user.Economy.Hand != 1000-40-50 {
		t.Fatalf("failed purchases must not charge, hand=%d", user.Economy.Hand)
	}
}

func TestBuyInsufficientFunds(t *testing.T) {
	store := users.NewMemoryStore()
	svc := New(store, testCatalog(), zap.NewNop())
	fund(t, store, "u1", 4)

	if _, err := svc.Buy(context.Background(), "u1", "copper_ore", 1); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	user, _, _ := store.Get(context.Background(), "u1")
	if len(user.Inventory) != 0 {
		t.Fatalf("inventory must stay empty, got %v", user.Inventory)
	}
}

func TestSell(t *testing.T) {
	store := users.NewMemoryStore()
	svc := New(store, testCatalog(), zap.NewNop())
	ctx := context.Background()
	fund(t, store, "u1", 50)

	if _, err := svc.Buy(ctx, "u1", "copper_ore", 3); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := svc.Sell(ctx, "u1", "copper_ore", 4); !errors.Is(err, ErrNotEnoughItems) {
		t.Fatalf("expected not enough items, got %v", err)
	}

	receipt, err := svc.Sell(ctx, "u1", "copper_ore", 3)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if receipt.Total != 6 || receipt.Hand != 50-15+6 || receipt.Holding != 0 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	user, _, _ := store.Get(ctx, "u1")
	if _, ok := user.Inventory["copper_ore"]; ok {
		t.Fatalf("sold out entries should be removed, got %v", user.Inventory)
	}
}

// contendedStore always loses the race.
type contendedStore struct {
	*users.MemoryStore
}

func (s *contendedStore) CompareAndSwap(context.Context, string, users.Patch, users.Patch) (users.User, bool, error) {
	return users.User{}, false, nil
}

func TestBuyConflict(t *testing.T) {
	mem := users.NewMemoryStore()
	fund(t, mem, "u1", 100)
	svc := New(&contendedStore{MemoryStore: mem}, testCatalog(), zap.NewNop())

	_, err := svc.Buy(context.Background(), "u1", "copper_ore", 1)
	if !errors.Is(err, transition.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}
