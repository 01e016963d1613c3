// Package economy moves coins between a user's hand and bank, between
// users, and pays the daily reward. Every change is a compare-and-swap on
// the economy section of the user document.
package economy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ishyv/tx-discord-bot-sub008/internal/transition"
	"github.com/ishyv/tx-discord-bot-sub008/internal/users"
)

var (
	ErrInvalidAmount     = errors.New("economy: amount must be positive")
	ErrInsufficientFunds = errors.New("economy: insufficient funds")
	ErrSelfTransfer      = errors.New("economy: cannot transfer to yourself")
	ErrDailyNotReady     = errors.New("economy: daily reward already claimed")
)

// DailyNotReadyError carries how long until the next daily claim.
type DailyNotReadyError struct {
	Remaining time.Duration
}

func (e *DailyNotReadyError) Error() string {
	return fmt.Sprintf("daily reward available in %s", e.Remaining.Round(time.Second))
}

func (e *DailyNotReadyError) Unwrap() error { return ErrDailyNotReady }

type Config struct {
	DailyReward      int64
	DailyStreakBonus int64
	// DailyStreakCap bounds how many streak days add a bonus.
	DailyStreakCap int
}

func DefaultConfig() Config {
	return Config{DailyReward: 100, DailyStreakBonus: 10, DailyStreakCap: 7}
}

const (
	dailyInterval = 24 * time.Hour
	streakGrace   = 48 * time.Hour
)

type Service struct {
	store  users.Store
	cfg    Config
	logger *zap.Logger
	hooks  transition.Hooks
	tracer trace.Tracer
	now    func() time.Time
}

func New(store users.Store, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logger,
		hooks:  transition.LogHooks{Logger: logger},
		tracer: otel.Tracer("txbot/economy"),
		now:    time.Now,
	}
}

// WithClock replaces the time source used by ClaimDaily.
func (s *Service) WithClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Balance(ctx context.Context, userID string) (users.Economy, error) {
	user, err := s.store.Ensure(ctx, userID)
	if err != nil {
		return users.Economy{}, err
	}
	return user.Economy, nil
}

// Grant adds amount to the hand of userID.
func (s *Service) Grant(ctx context.Context, userID string, amount int64) (users.Economy, error) {
	if amount <= 0 {
		return users.Economy{}, ErrInvalidAmount
	}
	ctx, span := s.start(ctx, "economy.grant", userID, amount)
	defer span.End()

	eco, err := s.mutate(ctx, "economy.grant", userID, func(eco *users.Economy) error {
		return credit(&eco.Hand, amount)
	})
	return eco, record(span, err)
}

func (s *Service) Deposit(ctx context.Context, userID string, amount int64) (users.Economy, error) {
	if amount <= 0 {
		return users.Economy{}, ErrInvalidAmount
	}
	ctx, span := s.start(ctx, "economy.deposit", userID, amount)
	defer span.End()

	eco, err := s.mutate(ctx, "economy.deposit", userID, func(eco *users.Economy) error {
		if eco.Hand < amount {
			return ErrInsufficientFunds
		}
		if err := credit(&eco.Bank, amount); err != nil {
			return err
		}
		eco.Hand -= amount
		return nil
	})
	return eco, record(span, err)
}

func (s *Service) Withdraw(ctx context.Context, userID string, amount int64) (users.Economy, error) {
	if amount <= 0 {
		return users.Economy{}, ErrInvalidAmount
	}
	ctx, span := s.start(ctx, "economy.withdraw", userID, amount)
	defer span.End()

	eco, err := s.mutate(ctx, "economy.withdraw", userID, func(eco *users.Economy) error {
		if eco.Bank < amount {
			return ErrInsufficientFunds
		}
		if err := credit(&eco.Hand, amount); err != nil {
			return err
		}
		eco.Bank -= amount
		return nil
	})
	return eco, record(span, err)
}

type Receipt struct {
	ID          string
	From        string
	To          string
	Amount      int64
	FromBalance users.Economy
	ToBalance   users.Economy
	At          time.Time
}

// Transfer moves amount from the hand of from to the hand of to. The two
// documents are swapped one after the other; when the credit fails the
// debit is refunded.
func (s *Service) Transfer(ctx context.Context, from, to string, amount int64) (Receipt, error) {
	if amount <= 0 {
		return Receipt{}, ErrInvalidAmount
	}
	if from == to {
		return Receipt{}, ErrSelfTransfer
	}
	ctx, span := s.start(ctx, "economy.transfer", from, amount)
	defer span.End()
	span.SetAttributes(attribute.String("economy.to", to))

	fromEco, err := s.mutate(ctx, "economy.transfer.debit", from, func(eco *users.Economy) error {
		if eco.Hand < amount {
			return ErrInsufficientFunds
		}
		eco.Hand -= amount
		return nil
	})
	if err != nil {
		return Receipt{}, record(span, err)
	}

	toEco, err := s.mutate(ctx, "economy.transfer.credit", to, func(eco *users.Economy) error {
		return credit(&eco.Hand, amount)
	})
	if err != nil {
		creditErr := err
		// the caller may be gone already, the refund must still land
		refundCtx := context.WithoutCancel(ctx)
		if _, err := s.mutate(refundCtx, "economy.transfer.refund", from, func(eco *users.Economy) error {
			eco.Hand += amount
			return nil
		}); err != nil {
			s.logger.Error("transfer refund failed",
				zap.String("from", from),
				zap.String("to", to),
				zap.Int64("amount", amount),
				zap.Error(err),
			)
			return Receipt{}, record(span, errors.Join(creditErr, fmt.Errorf("refund %s: %w", from, err)))
		}
		return Receipt{}, record(span, creditErr)
	}

	receipt := Receipt{
		ID:          uuid.NewString(),
		From:        from,
		To:          to,
		Amount:      amount,
		FromBalance: fromEco,
		ToBalance:   toEco,
		At:          s.now(),
	}
	span.SetAttributes(attribute.String("economy.receipt", receipt.ID))
	s.logger.Info("transfer",
		zap.String("receipt", receipt.ID),
		zap.String("from", from),
		zap.String("to", to),
		zap.Int64("amount", amount),
	)
	return receipt, nil
}

type DailyResult struct {
	Amount  int64
	Streak  int
	Economy users.Economy
}

// ClaimDaily pays the daily reward once per 24 hours. Claiming again
// within 48 hours of the last claim extends the streak.
func (s *Service) ClaimDaily(ctx context.Context, userID string) (DailyResult, error) {
	ctx, span := s.start(ctx, "economy.daily", userID, 0)
	defer span.End()

	now := s.now()
	var paid int64
	var streak int
	eco, err := s.mutate(ctx, "economy.daily", userID, func(eco *users.Economy) error {
		amount, nextStreak, err := s.daily(*eco, now)
		if err != nil {
			return err
		}
		if err := credit(&eco.Hand, amount); err != nil {
			return err
		}
		eco.DailyStreak = nextStreak
		eco.LastDailyAt = now.Unix()
		paid, streak = amount, nextStreak
		return nil
	})
	if err != nil {
		return DailyResult{}, record(span, err)
	}
	return DailyResult{Amount: paid, Streak: streak, Economy: eco}, nil
}

func (s *Service) daily(eco users.Economy, now time.Time) (int64, int, error) {
	streak := 1
	if eco.LastDailyAt != 0 {
		since := now.Sub(time.Unix(eco.LastDailyAt, 0))
		if since < dailyInterval {
			return 0, 0, &DailyNotReadyError{Remaining: dailyInterval - since}
		}
		if since < streakGrace {
			streak = eco.DailyStreak + 1
		}
	}
	bonusDays := streak - 1
	if bonusDays > s.cfg.DailyStreakCap {
		bonusDays = s.cfg.DailyStreakCap
	}
	return s.cfg.DailyReward + int64(bonusDays)*s.cfg.DailyStreakBonus, streak, nil
}

// credit adds amount to balance, refusing sums past the int64 range.
func credit(balance *int64, amount int64) error {
	if amount > 0 && *balance > math.MaxInt64-amount {
		return fmt.Errorf("%w: balance would overflow", ErrInvalidAmount)
	}
	*balance += amount
	return nil
}

func (s *Service) mutate(ctx context.Context, name, userID string, fn func(eco *users.Economy) error) (users.Economy, error) {
	return users.Mutate(ctx, s.store, users.Mutation[users.Economy]{
		Name:     name,
		UserID:   userID,
		Sections: []users.Section{users.SectionEconomy},
		Apply: func(_ context.Context, current users.Patch) (users.Patch, error) {
			if err := fn(current.Economy); err != nil {
				return users.Patch{}, err
			}
			return current, nil
		},
		Project: func(updated users.User, _ users.Patch) users.Economy {
			return updated.Economy
		},
		ConflictError: "your balance changed while processing, please try again",
		Hooks:         s.hooks,
	})
}

func (s *Service) start(ctx context.Context, name, userID string, amount int64) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.Int64("economy.amount", amount),
	))
}

func record(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
