package durable

import (
	"context"
	"fmt"
	"time"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
)

type accountRow struct {
	UserID       string `db:"user_id"`
	AccountEmail string `db:"account_email"`
	Provider     string `db:"provider"`
	AccountName  string `db:"account_name"`
	LastSyncedAt string `db:"last_synced_at"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

func (r accountRow) toDomain() (domain.Account, error) {
	a := domain.Account{
		UserID:      r.UserID,
		Email:       r.AccountEmail,
		Provider:    r.Provider,
		DisplayName: r.AccountName,
	}
	var err error
	if a.LastSyncedAt, err = parseTime(r.LastSyncedAt); err != nil {
		return a, fmt.Errorf("failed to parse last_synced_at: %w", err)
	}
	if a.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return a, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return a, nil
}

func (s *Store) UpsertAccount(ctx context.Context, acct *domain.Account) error {
	now := s.stamp()
	row := accountRow{
		UserID:       acct.UserID,
		AccountEmail: acct.Email,
		Provider:     acct.Provider,
		AccountName:  acct.DisplayName,
		LastSyncedAt: formatTime(acct.LastSyncedAt),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !acct.CreatedAt.IsZero() {
		row.CreatedAt = formatTime(acct.CreatedAt)
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO accounts (user_id, account_email, provider, account_name, last_synced_at, created_at, updated_at)
		VALUES (:user_id, :account_email, :provider, :account_name, :last_synced_at, :created_at, :updated_at)
		ON CONFLICT (user_id, account_email) DO UPDATE SET
			provider       = excluded.provider,
			account_name   = excluded.account_name,
			last_synced_at = CASE WHEN excluded.last_synced_at != '' THEN excluded.last_synced_at ELSE accounts.last_synced_at END,
			updated_at     = excluded.updated_at`, row)
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", acct.Email, err)
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	var rows []accountRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT user_id, account_email, provider, account_name, last_synced_at, created_at, updated_at
		FROM accounts WHERE user_id = ? ORDER BY created_at, account_email`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	accounts := make([]domain.Account, 0, len(rows))
	for _, r := range rows {
		a, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

// DeleteAccount removes the account and every row that belongs to it.
func (s *Store) DeleteAccount(ctx context.Context, userID, email string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"email_labels", "emails", "labels", "accounts"} {
		q := tx.Rebind(`DELETE FROM ` + table + ` WHERE user_id = ? AND account_email = ?`)
		if _, err := tx.ExecContext(ctx, q, userID, email); err != nil {
			return fmt.Errorf("failed to delete %s for %s: %w", table, email, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit account delete: %w", err)
	}
	return nil
}

func (s *Store) MarkSynced(ctx context.Context, userID, email string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE accounts SET last_synced_at = ?, updated_at = ?
		WHERE user_id = ? AND account_email = ?`),
		formatTime(at), s.stamp(), userID, email)
	if err != nil {
		return fmt.Errorf("failed to mark account %s synced: %w", email, err)
	}
	return nil
}
