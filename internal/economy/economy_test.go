package economy

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ishyv/tx-discord-bot-sub008/internal/transition"
	"github.com/ishyv/tx-discord-bot-sub008/internal/users"
)

func newService() (*Service, *users.MemoryStore) {
	store := users.NewMemoryStore()
	return New(store, DefaultConfig(), zap.NewNop()), store
}

// failingStore fails every swap on one user id.
type failingStore struct {
	*users.MemoryStore
	failFor string
}

var errStoreDown = errors.New("store down")

func (s *failingStore) CompareAndSwap(ctx context.Context, id string, expected, next users.Patch) (users.User, bool, error) {
	if id == s.failFor {
		return users.User{}, false, errStoreDown
	}
	return s.MemoryStore.CompareAndSwap(ctx, id, expected, next)
}

// contendedStore always loses the race.
type contendedStore struct {
	*users.MemoryStore
}

func (s *contendedStore) CompareAndSwap(context.Context, string, users.Patch, users.Patch) (users.User, bool, error) {
	return users.User{}, false, nil
}

func TestGrantDepositWithdraw(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	if _, err := svc.Grant(ctx, "u1", 150); err != nil {
		t.Fatalf("grant: %v", err)
	}
	eco, err := svc.Deposit(ctx, "u1", 100)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if eco.Hand != 50 || eco.Bank != 100 {
		t.Fatalf("unexpected balance after deposit: %+v", eco)
	}
	eco, err = svc.Withdraw(ctx, "u1", 30)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if eco.Hand != 80 || eco.Bank != 70 {
		t.Fatalf("unexpected balance after withdraw: %+v", eco)
	}
	if _, err := svc.Deposit(ctx, "u1", 81); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if _, err := svc.Withdraw(ctx, "u1", 71); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if _, err := svc.Grant(ctx, "u1", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestBalanceCreatesDefaultDocument(t *testing.T) {
	svc, store := newService()
	eco, err := svc.Balance(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if eco.Total() != 0 {
		t.Fatalf("expected zero balance, got %+v", eco)
	}
	if _, found, _ := store.Get(context.Background(), "fresh"); !found {
		t.Fatalf("expected document to be created")
	}
}

func TestTransfer(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	_, _ = svc.Grant(ctx, "alice", 100)

	receipt, err := svc.Transfer(ctx, "alice", "bob", 40)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if receipt.ID == "" || receipt.Amount != 40 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if receipt.FromBalance.Hand != 60 || receipt.ToBalance.Hand != 40 {
		t.Fatalf("unexpected balances: %+v / %+v", receipt.FromBalance, receipt.ToBalance)
	}
	if _, err := svc.Transfer(ctx, "alice", "alice", 1); !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("expected self transfer error, got %v", err)
	}
	if _, err := svc.Transfer(ctx, "bob", "alice", 41); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestTransferRefundsWhenCreditFails(t *testing.T) {
	store := &failingStore{MemoryStore: users.NewMemoryStore(), failFor: "bob"}
	svc := New(store, DefaultConfig(), zap.NewNop())
	ctx := context.Background()
	_, _ = svc.Grant(ctx, "alice", 100)

	if _, err := svc.Transfer(ctx, "alice", "bob", 40); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected credit failure, got %v", err)
	}
	eco, _ := svc.Balance(ctx, "alice")
	if eco.Hand != 100 {
		t.Fatalf("expected refund, got %+v", eco)
	}
}

func TestCreditsRefuseOverflow(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	if _, err := svc.Grant(ctx, "u1", math.MaxInt64); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := svc.Grant(ctx, "u1", 1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected overflow to be refused, got %v", err)
	}
	if _, err := svc.Grant(ctx, "u2", 5); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := svc.Transfer(ctx, "u2", "u1", 5); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected overflowing credit to be refused, got %v", err)
	}
	if eco, _ := svc.Balance(ctx, "u2"); eco.Hand != 5 {
		t.Fatalf("debit should have been refunded, got %+v", eco)
	}
	if eco, _ := svc.Balance(ctx, "u1"); eco.Hand != math.MaxInt64 {
		t.Fatalf("balance changed: %+v", eco)
	}
}

func TestContendedBalanceReturnsConflict(t *testing.T) {
	svc := New(&contendedStore{MemoryStore: users.NewMemoryStore()}, DefaultConfig(), zap.NewNop())
	_, err := svc.Grant(context.Background(), "u1", 10)
	if !errors.Is(err, transition.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestClaimDaily(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	svc.WithClock(func() time.Time { return now })

	res, err := svc.ClaimDaily(ctx, "u1")
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if res.Amount != 100 || res.Streak != 1 {
		t.Fatalf("unexpected first claim: %+v", res)
	}

	now = now.Add(23 * time.Hour)
	_, err = svc.ClaimDaily(ctx, "u1")
	var notReady *DailyNotReadyError
	if !errors.As(err, &notReady) || !errors.Is(err, ErrDailyNotReady) {
		t.Fatalf("expected daily not ready, got %v", err)
	}
	if notReady.Remaining != time.Hour {
		t.Fatalf("expected 1h remaining, got %v", notReady.Remaining)
	}

	now = now.Add(2 * time.Hour)
	res, err = svc.ClaimDaily(ctx, "u1")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if res.Streak != 2 || res.Amount != 110 {
		t.Fatalf("expected streak bonus, got %+v", res)
	}

	now = now.Add(72 * time.Hour)
	res, _ = svc.ClaimDaily(ctx, "u1")
	if res.Streak != 1 || res.Amount != 100 {
		t.Fatalf("expected streak reset, got %+v", res)
	}
	if res.Economy.Hand != 310 {
		t.Fatalf("expected 310 coins, got %+v", res.Economy)
	}
}

func TestDailyStreakBonusIsCapped(t *testing.T) {
	svc, _ := newService()
	now := time.Unix(1_700_000_000, 0)
	amount, streak, err := svc.daily(users.Economy{DailyStreak: 20, LastDailyAt: now.Add(-25 * time.Hour).Unix()}, now)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if streak != 21 || amount != 100+7*10 {
		t.Fatalf("expected capped bonus, got amount=%d streak=%d", amount, streak)
	}
}
