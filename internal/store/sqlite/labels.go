package sqlite

import (
	"context"
	"fmt"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
)

// UpsertLabels inserts or updates labels in a single transaction.
func (s *DB) UpsertLabels(ctx context.Context, userID string, labels []domain.Label) error {
	if len(labels) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, l := range labels {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO labels (id, account_email, user_id, name, type, color)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, id, account_email) DO UPDATE SET
				name  = excluded.name,
				type  = excluded.type,
				color = excluded.color`,
			l.ID, l.AccountEmail, userID, l.Name, string(l.Type), l.Color,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert label %s: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit labels: %w", err)
	}
	return nil
}

// ListLabels returns the labels of one account ordered by name.
func (s *DB) ListLabels(ctx context.Context, userID, accountEmail string) ([]domain.Label, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_email, name, type, color FROM labels
		WHERE user_id = ? AND account_email = ? ORDER BY name`,
		userID, accountEmail,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	defer rows.Close()

	var labels []domain.Label
	for rows.Next() {
		var l domain.Label
		var typ string
		if err := rows.Scan(&l.ID, &l.AccountEmail, &l.Name, &typ, &l.Color); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		l.Type = domain.LabelType(typ)
		labels = append(labels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate labels: %w", err)
	}
	return labels, nil
}
