package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
)

func (s *DB) UpsertAccount(ctx context.Context, acct *domain.Account) error {
	created := acct.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (user_id, email, provider, display_name, last_synced_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, email) DO UPDATE SET
			provider       = excluded.provider,
			display_name   = excluded.display_name,
			last_synced_at = CASE WHEN excluded.last_synced_at != '' THEN excluded.last_synced_at ELSE accounts.last_synced_at END`,
		acct.UserID, acct.Email, acct.Provider, acct.DisplayName,
		formatTime(acct.LastSyncedAt), formatTime(created),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", acct.Email, err)
	}
	return nil
}

func (s *DB) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, email, provider, display_name, last_synced_at, created_at
		FROM accounts WHERE user_id = ? ORDER BY created_at, email`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		var synced, created string
		if err := rows.Scan(&a.UserID, &a.Email, &a.Provider, &a.DisplayName, &synced, &created); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		if a.LastSyncedAt, err = parseTime(synced); err != nil {
			return nil, fmt.Errorf("failed to parse last_synced_at: %w", err)
		}
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// DeleteAccount removes the account together with its cached labels and
// emails.
func (s *DB) DeleteAccount(ctx context.Context, userID, email string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM emails WHERE user_id = ? AND account_email = ?`,
		`DELETE FROM labels WHERE user_id = ? AND account_email = ?`,
		`DELETE FROM accounts WHERE user_id = ? AND email = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, userID, email); err != nil {
			return fmt.Errorf("failed to delete account %s: %w", email, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit account delete: %w", err)
	}
	return nil
}

func (s *DB) MarkSynced(ctx context.Context, userID, email string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET last_synced_at = ? WHERE user_id = ? AND email = ?`,
		formatTime(at), userID, email,
	)
	if err != nil {
		return fmt.Errorf("failed to mark account %s synced: %w", email, err)
	}
	return nil
}
