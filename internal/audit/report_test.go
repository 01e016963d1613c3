package audit

import (
	"context"
	"testing"
	"time"

	"github.com/ishyv/tx-discord-bot-sub008/internal/storage"
)

func (m *memorySink) ListAuditLogs(_ context.Context, guildID string, since time.Time) ([]storage.AuditLog, error) {
	var out []storage.AuditLog
	for _, entry := range m.entries {
		if entry.GuildID == guildID && !entry.CreatedAt.Before(since) {
			out = append(out, entry)
		}
	}
	return out, nil
}

func TestSummarize(t *testing.T) {
	now := time.Unix(1700000000, 0)
	sink := &memorySink{entries: []storage.AuditLog{
		{GuildID: "g1", Level: LevelWarn, Event: "automod_scam_text", CreatedAt: now},
		{GuildID: "g1", Level: LevelWarn, Event: "automod_scam_text", CreatedAt: now},
		{GuildID: "g1", Level: LevelCrit, Event: "automod_burst_spam", CreatedAt: now},
		{GuildID: "g1", Level: LevelInfo, Event: "autorole_join", CreatedAt: now.Add(-48 * time.Hour)},
		{GuildID: "g2", Level: LevelInfo, Event: "autorole_join", CreatedAt: now},
	}}

	report, err := Summarize(context.Background(), sink, "g1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if report.Total != 3 || report.ByLevel[LevelWarn] != 2 || report.ByLevel[LevelCrit] != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	top := report.TopEvents(1)
	if len(top) != 1 || top[0].Event != "automod_scam_text" || top[0].Count != 2 {
		t.Fatalf("unexpected top events %+v", top)
	}
}
