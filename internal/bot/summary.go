package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ishyv/tx-discord-bot-sub008/internal/audit"
)

// RunSummaries posts a per-guild audit digest to the audit channel every
// interval until ctx is done.
func (b *Bot) RunSummaries(ctx context.Context, interval time.Duration) {
	if b.svc.Reports == nil || b.opts.AuditChannelID == "" || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.postSummaries(ctx, b.guildIDs(), now.Add(-interval))
		}
	}
}

func (b *Bot) guildIDs() []string {
	if b.session == nil || b.session.State == nil {
		return nil
	}
	b.session.State.RLock()
	defer b.session.State.RUnlock()
	ids := make([]string, 0, len(b.session.State.Guilds))
	for _, guild := range b.session.State.Guilds {
		ids = append(ids, guild.ID)
	}
	return ids
}

func (b *Bot) postSummaries(ctx context.Context, guildIDs []string, since time.Time) {
	for _, guildID := range guildIDs {
		report, err := audit.Summarize(ctx, b.svc.Reports, guildID, since)
		if err != nil {
			b.logger.Warn("audit summary failed", zap.String("guild_id", guildID), zap.Error(err))
			continue
		}
		if report.Total == 0 {
			continue
		}
		if err := b.api.SendMessage(ctx, b.opts.AuditChannelID, formatSummary(report)); err != nil {
			b.logger.Warn("audit summary send failed", zap.String("guild_id", guildID), zap.Error(err))
		}
	}
}

func formatSummary(report audit.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Audit summary for %s since %s: %d entries (INFO=%d WARN=%d CRIT=%d)",
		report.GuildID,
		report.Since.UTC().Format(time.RFC3339),
		report.Total,
		report.ByLevel[audit.LevelInfo],
		report.ByLevel[audit.LevelWarn],
		report.ByLevel[audit.LevelCrit],
	)
	for _, top := range report.TopEvents(5) {
		fmt.Fprintf(&sb, "\n- %s: %d", top.Event, top.Count)
	}
	return sb.String()
}
