package durable

import (
	"context"
	"fmt"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
)

type labelRow struct {
	UserID          string `db:"user_id"`
	AccountEmail    string `db:"account_email"`
	ProviderLabelID string `db:"provider_label_id"`
	Name            string `db:"name"`
	Type            string `db:"type"`
	CreatedAt       string `db:"created_at"`
	UpdatedAt       string `db:"updated_at"`
}

func (s *Store) UpsertLabels(ctx context.Context, userID string, labels []domain.Label) error {
	if len(labels) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.stamp()
	for _, l := range labels {
		row := labelRow{
			UserID:          userID,
			AccountEmail:    l.AccountEmail,
			ProviderLabelID: l.ID,
			Name:            l.Name,
			Type:            string(l.Type),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO labels (user_id, account_email, provider_label_id, name, type, created_at, updated_at)
			VALUES (:user_id, :account_email, :provider_label_id, :name, :type, :created_at, :updated_at)
			ON CONFLICT (user_id, account_email, provider_label_id) DO UPDATE SET
				name       = excluded.name,
				type       = excluded.type,
				updated_at = excluded.updated_at`, row)
		if err != nil {
			return fmt.Errorf("failed to upsert label %s: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit labels: %w", err)
	}
	return nil
}

func (s *Store) ListLabels(ctx context.Context, userID, accountEmail string) ([]domain.Label, error) {
	var rows []labelRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT user_id, account_email, provider_label_id, name, type, created_at, updated_at
		FROM labels WHERE user_id = ? AND account_email = ? ORDER BY name`),
		userID, accountEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}

	labels := make([]domain.Label, 0, len(rows))
	for _, r := range rows {
		labels = append(labels, domain.Label{
			ID:           r.ProviderLabelID,
			AccountEmail: r.AccountEmail,
			Name:         r.Name,
			Type:         domain.LabelType(r.Type),
		})
	}
	return labels, nil
}
