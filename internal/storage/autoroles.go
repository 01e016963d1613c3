package storage

import (
	"context"
	"time"
)

type AutoroleRule struct {
	GuildID   string
	RoleID    string
	Trigger   string
	Threshold int64
	CreatedAt time.Time
}

func (s *Store) UpsertAutoroleRule(ctx context.Context, rule AutoroleRule) error {
	created := rule.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO autorole_rules (guild_id, role_id, trigger_kind, threshold, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, role_id, trigger_kind) DO UPDATE SET
			threshold = excluded.threshold
	`, rule.GuildID, rule.RoleID, rule.Trigger, rule.Threshold, created.Unix())
	return err
}

func (s *Store) DeleteAutoroleRule(ctx context.Context, guildID, roleID, trigger string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM autorole_rules WHERE guild_id = ? AND role_id = ? AND trigger_kind = ?
	`, guildID, roleID, trigger)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AutoroleRules lists the rules of a guild for one trigger, lowest threshold
// first.
func (s *Store) AutoroleRules(ctx context.Context, guildID, trigger string) ([]AutoroleRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, role_id, trigger_kind, threshold, created_at
		FROM autorole_rules
		WHERE guild_id = ? AND trigger_kind = ?
		ORDER BY threshold ASC, role_id ASC
	`, guildID, trigger)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []AutoroleRule
	for rows.Next() {
		var rule AutoroleRule
		var created int64
		if err := rows.Scan(&rule.GuildID, &rule.RoleID, &rule.Trigger, &rule.Threshold, &created); err != nil {
			return nil, err
		}
		rule.CreatedAt = time.Unix(created, 0)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
