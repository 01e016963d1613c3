// Package activity counts messages per user and pays a small reward for
// chatting, at most once per cooldown period.
package activity

import (
	"context"
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

const cooldownBucket = "activity"

type Config struct {
	Reward   int64
	Cooldown time.Duration
}

type Result struct {
	MessagesBefore int64
	Messages       int64
	Rewarded       int64
}

type Tracker struct {
	store     users.Store
	cooldowns *cooldown.Manager
	cfg       Config
	logger    *zap.Logger
	hooks     transition.Hooks
	tracer    trace.Tracer
}

func New(store users.Store, cooldowns *cooldown.Manager, cfg Config, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:     store,
		cooldowns: cooldowns,
		cfg:       cfg,
		logger:    logger,
		hooks:     transition.LogHooks{Logger: logger},
		tracer:    otel.Tracer("txbot/activity"),
	}
}

// RecordMessage counts one message by userID and credits the activity
// reward in the same swap when the reward cooldown allows it.
func (t *Tracker) RecordMessage(ctx context.Context, guildID, userID string) (Result, error) {
	ctx, span := t.tracer.Start(ctx, "activity.message", trace.WithAttributes(
		attribute.String("guild.id", guildID),
		attribute.String("user.id", userID),
	))
	defer span.End()

	subject := guildID + ":" + userID
	reward := int64(0)
	if t.cfg.Reward > 0 && t.cfg.Cooldown > 0 {
		res, err := t.cooldowns.Try(ctx, cooldownBucket, subject, t.cfg.Cooldown)
		if err != nil {
			// a broken cooldown store only costs the reward
			t.logger.Warn("activity cooldown unavailable", zap.String("user_id", userID), zap.Error(err))
		} else if res.Allowed {
			reward = t.cfg.Reward
		}
	}

	sections := []users.Section{users.SectionStats}
	if reward > 0 {
		sections = []users.Section{users.SectionEconomy, users.SectionStats}
	}

	var before int64
	result, err := users.Mutate(ctx, t.store, users.Mutation[Result]{
		Name:     "activity.message",
		UserID:   userID,
		Sections: sections,
		Apply: func(_ context.Context, current users.Patch) (users.Patch, error) {
			before = current.Stats.Messages
			current.Stats.Messages++
			if reward > 0 {
				current.Economy.Hand += reward
			}
			return current, nil
		},
		Project: func(updated users.User, _ users.Patch) Result {
			return Result{MessagesBefore: before, Messages: updated.Stats.Messages, Rewarded: reward}
		},
		Hooks: t.hooks,
	})
	if err != nil {
		if reward > 0 {
			if resetErr := t.cooldowns.Reset(context.WithoutCancel(ctx), cooldownBucket, subject); resetErr != nil {
				t.logger.Warn("activity cooldown release failed", zap.String("user_id", userID), zap.Error(resetErr))
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	return result, nil
}
