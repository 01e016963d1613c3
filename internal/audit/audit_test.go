package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ishyv/tx-discord-bot-sub008/internal/storage"
)

type memorySink struct {
	entries []storage.AuditLog
	err     error
}

func (m *memorySink) AddAuditLog(_ context.Context, log storage.AuditLog) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, log)
	return nil
}

type countingCleaner struct {
	calls int
	days  int
}

func (c *countingCleaner) CleanupAuditLogs(_ context.Context, retentionDays int) (int64, error) {
	c.calls++
	c.days = retentionDays
	return 0, nil
}

func TestLogPersistsAndNotifies(t *testing.T) {
	sink := &memorySink{}
	logger := NewLogger(sink, zap.NewNop())
	var notified []string
	logger.SetNotifier(func(_ context.Context, entry storage.AuditLog) {
		notified = append(notified, entry.Event)
	})

	logger.Log(context.Background(), LevelWarn, "g1", "u1", "automod_scam", "rule=nitro")
	if len(sink.entries) != 1 || sink.entries[0].Level != LevelWarn || sink.entries[0].Details != "rule=nitro" {
		t.Fatalf("unexpected entries %+v", sink.entries)
	}
	if len(notified) != 1 || notified[0] != "automod_scam" {
		t.Fatalf("expected notifier call, got %v", notified)
	}
}

func TestLogSurvivesSinkFailure(t *testing.T) {
	logger := NewLogger(&memorySink{err: errors.New("disk full")}, zap.NewNop())
	called := false
	logger.SetNotifier(func(context.Context, storage.AuditLog) { called = true })
	logger.Log(context.Background(), LevelInfo, "g1", "u1", "autorole", "granted")
	if !called {
		t.Fatalf("notifier must run even when persisting fails")
	}
}

func TestRunRetentionStopsWithContext(t *testing.T) {
	cleaner := &countingCleaner{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	RunRetention(ctx, cleaner, 30, time.Hour, zap.NewNop())
	if cleaner.calls != 1 || cleaner.days != 30 {
		t.Fatalf("expected one cleanup pass, got %+v", cleaner)
	}
}
