package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ishyv/tx-discord-bot-sub008/internal/users"
)

// UserStore keeps user documents as JSON text and implements users.Store.
type UserStore struct {
	db  *sql.DB
	now func() time.Time
}

func (s *Store) Users() *UserStore {
	return &UserStore{db: s.db, now: time.Now}
}

func (u *UserStore) Ensure(ctx context.Context, id string) (users.User, error) {
	now := u.now()
	doc, err := users.Encode(users.New(id, now))
	if err != nil {
		return users.User{}, err
	}
	_, err = u.db.ExecContext(ctx, `
		INSERT INTO users (id, doc, created_at, updated_at)
		VALUES (?, json(?), ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, string(doc), now.Unix(), now.Unix())
	if err != nil {
		return users.User{}, fmt.Errorf("ensure user: %w", err)
	}

	user, found, err := u.Get(ctx, id)
	if err != nil {
		return users.User{}, err
	}
	if !found {
		return users.User{}, fmt.Errorf("ensure user %s: not found after insert", id)
	}
	return user, nil
}

func (u *UserStore) Get(ctx context.Context, id string) (users.User, bool, error) {
	row := u.db.QueryRowContext(ctx, `SELECT doc, created_at, updated_at FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return users.User{}, false, nil
		}
		return users.User{}, false, err
	}
	return user, true, nil
}

func (u *UserStore) CompareAndSwap(ctx context.Context, id string, expected, next users.Patch) (users.User, bool, error) {
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

	query, args := buildUserSwap(id, u.now().Unix(), want, set)
	user, err := scanUser(u.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return users.User{}, false, nil
		}
		return users.User{}, false, fmt.Errorf("swap user %s: %w", id, err)
	}
	return user, true, nil
}

// buildUserSwap renders a single conditional UPDATE. Section names come from
// users.Section constants, never from input.
func buildUserSwap(id string, now int64, want, set []users.SectionValue) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, 2*len(set)+2+len(want))

	b.WriteString("UPDATE users SET doc = json_set(doc")
	for _, value := range set {
		fmt.Fprintf(&b, ", '$.%s', json(?)", value.Section)
		args = append(args, string(value.JSON))
	}
	b.WriteString("), updated_at = ? WHERE id = ?")
	args = append(args, now, id)
	for _, value := range want {
		fmt.Fprintf(&b, " AND doc -> '$.%s' = json(?)", value.Section)
		args = append(args, string(value.JSON))
	}
	b.WriteString(" RETURNING doc, created_at, updated_at")
	return b.String(), args
}

func scanUser(row *sql.Row) (users.User, error) {
	var doc string
	var created, updated int64
	if err := row.Scan(&doc, &created, &updated); err != nil {
		return users.User{}, err
	}
	user, err := users.Decode([]byte(doc))
	if err != nil {
		return users.User{}, fmt.Errorf("decode user: %w", err)
	}
	user.CreatedAt = time.Unix(created, 0)
	user.UpdatedAt = time.Unix(updated, 0)
	return user, nil
}
