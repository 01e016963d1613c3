// Package reputation lets members vouch for each other.
package reputation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ishyv/tx-discord-bot-sub008/internal/cooldown"
	"github.com/ishyv/tx-discord-bot-sub008/internal/transition"
	"github.com/ishyv/tx-discord-bot-sub008/internal/users"
)

const cooldownBucket = "rep"

var (
	ErrSelfReputation = errors.New("reputation: cannot give reputation to yourself")
	ErrOnCooldown     = errors.New("reputation: giver is on cooldown")
	ErrInvalidAmount  = errors.New("reputation: amount must be positive")
)

type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("you can give reputation again in %s", e.Remaining.Round(time.Second))
}

func (e *CooldownError) Unwrap() error { return ErrOnCooldown }

type Change struct {
	UserID string
	Before int64
	After  int64
}

type Service struct {
	store     users.Store
	cooldowns *cooldown.Manager
	period    time.Duration
	logger    *zap.Logger
	hooks     transition.Hooks
	tracer    trace.Tracer
}

func New(store users.Store, cooldowns *cooldown.Manager, period time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		cooldowns: cooldowns,
		period:    period,
		logger:    logger,
		hooks:     transition.LogHooks{Logger: logger},
		tracer:    otel.Tracer("txbot/reputation"),
	}
}

// Give adds one reputation point to to on behalf of from.
func (s *Service) Give(ctx context.Context, guildID, from, to string) (Change, error) {
	if from == to {
		return Change{}, ErrSelfReputation
	}
	ctx, span := s.tracer.Start(ctx, "reputation.give", trace.WithAttributes(
		attribute.String("guild.id", guildID),
		attribute.String("user.id", to),
	))
	defer span.End()

	subject := guildID + ":" + from
	if s.period > 0 {
		res, err := s.cooldowns.Try(ctx, cooldownBucket, subject, s.period)
		if err != nil {
			return Change{}, fail(span, err)
		}
		if !res.Allowed {
			return Change{}, &CooldownError{Remaining: res.Remaining}
		}
	}

	change, err := s.adjust(ctx, "reputation.give", to, 1)
	if err != nil {
		if s.period > 0 {
			if resetErr := s.cooldowns.Reset(context.WithoutCancel(ctx), cooldownBucket, subject); resetErr != nil {
				s.logger.Warn("reputation cooldown release failed", zap.String("giver", from), zap.Error(resetErr))
			}
		}
		return Change{}, fail(span, err)
	}
	s.logger.Debug("reputation given",
		zap.String("guild_id", guildID),
		zap.String("from", from),
		zap.String("to", to),
		zap.Int64("reputation", change.After),
	)
	return change, nil
}

// Take removes amount points from userID. Reputation never goes below zero.
func (s *Service) Take(ctx context.Context, userID string, amount int64) (Change, error) {
	if amount <= 0 {
		return Change{}, ErrInvalidAmount
	}
	ctx, span := s.tracer.Start(ctx, "reputation.take", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	change, err := s.adjust(ctx, "reputation.take", userID, -amount)
	if err != nil {
		return Change{}, fail(span, err)
	}
	return change, nil
}

func (s *Service) Get(ctx context.Context, userID string) (int64, error) {
	user, err := s.store.Ensure(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Reputation, nil
}

func (s *Service) adjust(ctx context.Context, name, userID string, delta int64) (Change, error) {
	var before int64
	return users.Mutate(ctx, s.store, users.Mutation[Change]{
		Name:     name,
		UserID:   userID,
		Sections: []users.Section{users.SectionReputation},
		Apply: func(_ context.Context, current users.Patch) (users.Patch, error) {
			before = *current.Reputation
			next := before + delta
			if next < 0 {
				next = 0
			}
			return users.Patch{Reputation: &next}, nil
		},
		Project: func(updated users.User, _ users.Patch) Change {
			return Change{UserID: userID, Before: before, After: updated.Reputation}
		},
		Hooks: s.hooks,
	})
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
