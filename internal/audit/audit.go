// Package audit records moderation and automation events for a guild.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ishyv/tx-discord-bot-sub008/internal/storage"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

type Sink interface {
	AddAuditLog(ctx context.Context, log storage.AuditLog) error
}

type Logger struct {
	sink   Sink
	logger *zap.Logger
	notify func(context.Context, storage.AuditLog)
	now    func() time.Time
}

func NewLogger(sink Sink, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{sink: sink, logger: logger, now: time.Now}
}

// SetNotifier registers a callback run after each entry is stored, for
// example to mirror entries into a log channel.
func (l *Logger) SetNotifier(notify func(context.Context, storage.AuditLog)) {
	l.notify = notify
}

func (l *Logger) Log(ctx context.Context, level, guildID, userID, event, details string) {
	entry := storage.AuditLog{
		GuildID:   guildID,
		UserID:    userID,
		Level:     level,
		Event:     event,
		Details:   details,
		CreatedAt: l.now(),
	}
	if l.sink != nil {
		if err := l.sink.AddAuditLog(ctx, entry); err != nil {
			l.logger.Error("audit persist failed", zap.String("event", event), zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("audit",
		zap.String("level", level),
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("event", event),
		zap.String("details", details),
	)
}

type Cleaner interface {
	CleanupAuditLogs(ctx context.Context, retentionDays int) (int64, error)
}

// RunRetention deletes entries older than retentionDays every interval
// until ctx is done.
func RunRetention(ctx context.Context, cleaner Cleaner, retentionDays int, interval time.Duration, logger *zap.Logger) {
	if retentionDays <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		removed, err := cleaner.CleanupAuditLogs(ctx, retentionDays)
		if err != nil {
			logger.Warn("audit retention failed", zap.Error(err))
		} else if removed > 0 {
			logger.Info("audit retention", zap.Int64("removed", removed))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
