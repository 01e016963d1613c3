package automod

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ishyv/tx-discord-bot-sub008/internal/audit"
)

type Moderator interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	Timeout(ctx context.Context, guildID, userID string, until time.Time) error
}

type StrikeStore interface {
	AddStrike(ctx context.Context, guildID, userID, rule string, now time.Time, forgiveAfter time.Duration) (int, error)
}

type Actions struct {
	// AuditOnly records verdicts without touching messages or members.
	AuditOnly bool
	Delete    bool
	// TimeoutAfter is the strike count that triggers a timeout, zero
	// disables timeouts.
	TimeoutAfter  int
	TimeoutFor    time.Duration
	StrikeForgive time.Duration
}

type Outcome struct {
	Deleted  bool
	Strikes  int
	TimedOut bool
}

type Enforcer struct {
	actions Actions
	mod     Moderator
	strikes StrikeStore
	audit   *audit.Logger
	logger  *zap.Logger
	now     func() time.Time
}

func NewEnforcer(actions Actions, mod Moderator, strikes StrikeStore, auditLogger *audit.Logger, logger *zap.Logger) *Enforcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enforcer{actions: actions, mod: mod, strikes: strikes, audit: auditLogger, logger: logger, now: time.Now}
}

// Enforce applies the configured actions for verdict. Discord failures are
// collected and returned together after the audit entry is written.
func (e *Enforcer) Enforce(ctx context.Context, msg Message, verdict Verdict) (Outcome, error) {
	var out Outcome
	var errs []error
	now := e.now()

	if e.strikes != nil {
		count, err := e.strikes.AddStrike(ctx, msg.GuildID, msg.AuthorID, verdict.Rule, now, e.actions.StrikeForgive)
		if err != nil {
			errs = append(errs, fmt.Errorf("add strike: %w", err))
		}
		out.Strikes = count
	}

	if !e.actions.AuditOnly && e.mod != nil {
		if e.actions.Delete && msg.MessageID != "" {
			if err := e.mod.DeleteMessage(ctx, msg.ChannelID, msg.MessageID); err != nil {
				errs = append(errs, fmt.Errorf("delete message: %w", err))
			} else {
				out.Deleted = true
			}
		}
		if e.actions.TimeoutAfter > 0 && out.Strikes >= e.actions.TimeoutAfter && e.actions.TimeoutFor > 0 {
			if err := e.mod.Timeout(ctx, msg.GuildID, msg.AuthorID, now.Add(e.actions.TimeoutFor)); err != nil {
				errs = append(errs, fmt.Errorf("timeout member: %w", err))
			} else {
				out.TimedOut = true
			}
		}
	}

	if e.audit != nil {
		level := audit.LevelWarn
		if out.TimedOut {
			level = audit.LevelCrit
		}
		detail := fmt.Sprintf("type=AUTOMOD rule=%s strikes=%d deleted=%t timeout=%t %s",
			verdict.Rule, out.Strikes, out.Deleted, out.TimedOut, verdict.Detail)
		e.audit.Log(ctx, level, msg.GuildID, msg.AuthorID, "automod_"+verdict.Rule, detail)
	}
	return out, errors.Join(errs...)
}
