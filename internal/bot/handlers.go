package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ishyv/tx-discord-bot-sub008/internal/audit"
	"github.com/ishyv/tx-discord-bot-sub008/internal/automod"
	"github.com/ishyv/tx-discord-bot-sub008/internal/autorole"
	"github.com/ishyv/tx-discord-bot-sub008/internal/reputation"
)

// handleMessage moderates msg and, when it passes, counts it as activity.
func (b *Bot) handleMessage(ctx context.Context, msg automod.Message) {
	if b.moderate(ctx, msg) {
		return
	}
	if b.svc.Activity == nil {
		return
	}
	res, err := b.svc.Activity.RecordMessage(ctx, msg.GuildID, msg.AuthorID)
	if err != nil {
		b.logger.Warn("activity record failed",
			zap.String("guild_id", msg.GuildID),
			zap.String("user_id", msg.AuthorID),
			zap.Error(err),
		)
		return
	}
	b.grantProgress(ctx, msg.GuildID, msg.AuthorID, autorole.TriggerMessages, res.MessagesBefore, res.Messages)
}

// moderate reports whether msg was flagged.
func (b *Bot) moderate(ctx context.Context, msg automod.Message) bool {
	if b.svc.Automod == nil {
		return false
	}
	verdict, flagged, err := b.svc.Automod.Inspect(ctx, msg)
	if err != nil {
		b.logger.Warn("automod inspect failed", zap.String("message_id", msg.MessageID), zap.Error(err))
	}
	if !flagged {
		return false
	}
	if b.svc.Enforcer == nil {
		b.logger.Info("automod verdict without enforcer",
			zap.String("rule", verdict.Rule),
			zap.String("user_id", msg.AuthorID),
		)
		return true
	}
	outcome, err := b.svc.Enforcer.Enforce(ctx, msg, verdict)
	if err != nil {
		b.logger.Warn("automod enforce failed",
			zap.String("rule", verdict.Rule),
			zap.String("user_id", msg.AuthorID),
			zap.Error(err),
		)
	}
	b.logger.Debug("automod verdict",
		zap.String("rule", verdict.Rule),
		zap.String("user_id", msg.AuthorID),
		zap.Bool("deleted", outcome.Deleted),
		zap.Int("strikes", outcome.Strikes),
		zap.Bool("timed_out", outcome.TimedOut),
	)
	return true
}

func (b *Bot) handleJoin(ctx context.Context, guildID, userID string) {
	b.watchJoinBurst(ctx, guildID, userID)
	if b.svc.Autoroles == nil {
		return
	}
	roles, err := b.svc.Autoroles.OnJoin(ctx, guildID)
	if err != nil {
		b.logger.Warn("join autoroles failed", zap.String("guild_id", guildID), zap.Error(err))
		return
	}
	b.grantRoles(ctx, guildID, userID, autorole.TriggerJoin, roles)
}

// watchJoinBurst raises one CRIT entry when a guild's joins first cross the
// configured limit inside the window.
func (b *Bot) watchJoinBurst(ctx context.Context, guildID, userID string) {
	limiter := b.svc.JoinBurst
	if limiter == nil || limiter.Limit() <= 0 {
		return
	}
	count := limiter.Hit(guildID, time.Now())
	if count != limiter.Limit()+1 {
		return
	}
	b.logger.Warn("join burst detected", zap.String("guild_id", guildID), zap.Int("joins", count))
	if b.svc.Audit != nil {
		b.svc.Audit.Log(ctx, audit.LevelCrit, guildID, userID, "join_burst", fmt.Sprintf("type=RAID joins=%d limit=%d", count, limiter.Limit()))
	}
}

// handleReputationReaction gives one reputation point from the reactor to
// the author of the reacted message.
func (b *Bot) handleReputationReaction(ctx context.Context, guildID, channelID, messageID, reactorID string) {
	if b.svc.Reputation == nil {
		return
	}
	authorID, authorBot, err := b.api.MessageAuthor(ctx, channelID, messageID)
	if err != nil {
		b.logger.Warn("reaction author lookup failed", zap.String("message_id", messageID), zap.Error(err))
		return
	}
	if authorBot {
		return
	}

	change, err := b.svc.Reputation.Give(ctx, guildID, reactorID, authorID)
	switch {
	case errors.Is(err, reputation.ErrSelfReputation), errors.Is(err, reputation.ErrOnCooldown):
		b.logger.Debug("reputation not given",
			zap.String("from", reactorID),
			zap.String("to", authorID),
			zap.Error(err),
		)
		return
	case err != nil:
		b.logger.Warn("reputation give failed",
			zap.String("from", reactorID),
			zap.String("to", authorID),
			zap.Error(err),
		)
		return
	}
	b.grantProgress(ctx, guildID, authorID, autorole.TriggerReputation, change.Before, change.After)
}

func (b *Bot) grantProgress(ctx context.Context, guildID, userID string, trigger autorole.Trigger, before, after int64) {
	if b.svc.Autoroles == nil {
		return
	}
	roles, err := b.svc.Autoroles.OnProgress(ctx, guildID, trigger, before, after)
	if err != nil {
		b.logger.Warn("autoroles failed",
			zap.String("guild_id", guildID),
			zap.String("trigger", string(trigger)),
			zap.Error(err),
		)
		return
	}
	b.grantRoles(ctx, guildID, userID, trigger, roles)
}

func (b *Bot) grantRoles(ctx context.Context, guildID, userID string, trigger autorole.Trigger, roles []string) {
	var granted []string
	for _, roleID := range roles {
		if err := b.api.AddRole(ctx, guildID, userID, roleID); err != nil {
			b.logger.Warn("role grant failed",
				zap.String("guild_id", guildID),
				zap.String("user_id", userID),
				zap.String("role_id", roleID),
				zap.Error(err),
			)
			continue
		}
		granted = append(granted, roleID)
	}
	if len(granted) > 0 && b.svc.Audit != nil {
		b.svc.Audit.Log(ctx, audit.LevelInfo, guildID, userID, "autorole_"+string(trigger), "roles="+strings.Join(granted, ","))
	}
}
