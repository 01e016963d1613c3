// Package pgstore keeps user documents in PostgreSQL as JSONB so several bot
// processes can share them. Conditional writes are single UPDATE statements.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ishyv/tx-discord-bot-sub008/internal/users"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	doc JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *Store) Ensure(ctx context.Context, id string) (users.User, error) {
	doc, err := users.Encode(users.New(id, time.Now()))
	if err != nil {
		return users.User{}, err
	}
	row := s.pool.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO users (id, doc) VALUES ($1, $2::jsonb)
			ON CONFLICT (id) DO NOTHING
			RETURNING doc, created_at, updated_at
		)
		SELECT doc, created_at, updated_at FROM inserted
		UNION ALL
		SELECT doc, created_at, updated_at FROM users WHERE id = $1
		LIMIT 1
	`, id, string(doc))
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// lost an insert race to a transaction that was not visible yet
		var found bool
		user, found, err = s.Get(ctx, id)
		if err == nil && !found {
			err = pgx.ErrNoRows
		}
	}
	if err != nil {
		return users.User{}, fmt.Errorf("ensure user %s: %w", id, err)
	}
	return user, nil
}

func (s *Store) Get(ctx context.Context, id string) (users.User, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT doc, created_at, updated_at FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return users.User{}, false, nil
		}
		return users.User{}, false, err
	}
	return user, true, nil
}

func (s *Store) CompareAndSwap(ctx context.Context, id string, expected, next users.Patch) (users.User, bool, error) {
	if err := users.ValidatePatch(expected, next); err != nil {
		return users.User{}, false, err
	}
	want, err := expected.Encode()
	if err != nil {
		return users.User{}, false, err
	}
	set, err := next.Encode()
	if err != nil {
		return users.User{}, false, err
	}

	query, args := buildSwap(id, want, set)
	user, err := scanUser(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return users.User{}, false, nil
		}
		return users.User{}, false, fmt.Errorf("swap user %s: %w", id, err)
	}
	return user, true, nil
}

// buildSwap nests one jsonb_set per written section and compares each
// expected section with JSONB equality, which ignores key order.
func buildSwap(id string, want, set []users.SectionValue) (string, []any) {
	args := []any{id}
	placeholder := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	expr := "doc"
	for _, value := range set {
		expr = fmt.Sprintf("jsonb_set(%s, '{%s}', %s::jsonb)", expr, value.Section, placeholder(string(value.JSON)))
	}

	var where strings.Builder
	where.WriteString("id = $1")
	for _, value := range want {
		fmt.Fprintf(&where, " AND doc -> '%s' = %s::jsonb", value.Section, placeholder(string(value.JSON)))
	}

	query := fmt.Sprintf(
		"UPDATE users SET doc = %s, updated_at = now() WHERE %s RETURNING doc, created_at, updated_at",
		expr, where.String(),
	)
	return query, args
}

func scanUser(row pgx.Row) (users.User, error) {
	var doc []byte
	var created, updated time.Time
	if err := row.Scan(&doc, &created, &updated); err != nil {
		return users.User{}, err
	}
	user, err := users.Decode(doc)
	if err != nil {
		return users.User{}, fmt.Errorf("decode user: %w", err)
	}
	user.CreatedAt = created
	user.UpdatedAt = updated
	return user, nil
}
