package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const lastUserKey = "last_user_id"

// LastUser returns the user id of the last confirmed session.
func (s *DB) LastUser(ctx context.Context) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, lastUserKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read last user: %w", err)
	}
	return v, nil
}

// SetLastUser records the user id so a later offline start can find its
// cached data.
func (s *DB) SetLastUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		lastUserKey, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to set last user: %w", err)
	}
	return nil
}
