package audit

import (
	"context"
	"sort"
	"time"

	"github.com/ishyv/tx-discord-bot-sub008/internal/storage"
)

type Lister interface {
	ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]storage.AuditLog, error)
}

type Report struct {
	GuildID string
	Since   time.Time
	Total   int
	ByLevel map[string]int
	ByEvent map[string]int
}

// Summarize counts the entries of guildID recorded since the given time.
func Summarize(ctx context.Context, lister Lister, guildID string, since time.Time) (Report, error) {
	logs, err := lister.ListAuditLogs(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		GuildID: guildID,
		Since:   since,
		ByLevel: make(map[string]int),
		ByEvent: make(map[string]int),
	}
	for _, log := range logs {
		report.Total++
		report.ByLevel[log.Level]++
		report.ByEvent[log.Event]++
	}
	return report, nil
}

type EventCount struct {
	Event string
	Count int
}

// TopEvents returns the most frequent events, ties broken by name.
func (r Report) TopEvents(limit int) []EventCount {
	out := make([]EventCount, 0, len(r.ByEvent))
	for event, count := range r.ByEvent {
		out = append(out, EventCount{Event: event, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Event < out[j].Event
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
