package storage

import (
	"context"
	"time"
)

// AddStrike records one automod strike for a user and returns the number of
// strikes still active. Strikes add up across rules; rule is kept as the
// last offence. A strike window that reached its reset time
// starts again from one. forgiveAfter <= 0 keeps strikes forever.
func (s *Store) AddStrike(ctx context.Context, guildID, userID, rule string, now time.Time, forgiveAfter time.Duration) (int, error) {
	var resetAt any
	if forgiveAfter > 0 {
		resetAt = now.Add(forgiveAfter).Unix()
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO strikes (guild_id, user_id, last_rule, count, last_at, reset_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			count = CASE
				WHEN strikes.reset_at IS NOT NULL AND strikes.reset_at <= excluded.last_at THEN 1
				ELSE strikes.count + 1
			END,
			last_rule = excluded.last_rule,
			last_at = excluded.last_at,
			reset_at = excluded.reset_at
		RETURNING count
	`, guildID, userID, rule, now.Unix(), resetAt).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ClearStrikes(ctx context.Context, guildID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM strikes WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	return err
}
