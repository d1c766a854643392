package durable

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/store"
)

type emailRow struct {
	UserID            string `db:"user_id"`
	AccountEmail      string `db:"account_email"`
	ProviderMessageID string `db:"provider_message_id"`
	ThreadID          string `db:"thread_id"`
	MessageIDHeader   string `db:"message_id_header"`
	ReferencesHeader  string `db:"references_header"`
	SenderName        string `db:"sender_name"`
	SenderEmail       string `db:"sender_email"`
	RecipientTo       string `db:"recipient_to"`
	RecipientCC       string `db:"recipient_cc"`
	RecipientBCC      string `db:"recipient_bcc"`
	Subject           string `db:"subject"`
	Snippet           string `db:"snippet"`
	DateReceived      string `db:"date_received"`
	IsRead            bool   `db:"is_read"`
	HasAttachments    bool   `db:"has_attachments"`
	CreatedAt         string `db:"created_at"`
	UpdatedAt         string `db:"updated_at"`
}

type linkRow struct {
	AccountEmail      string `db:"account_email"`
	ProviderMessageID string `db:"provider_message_id"`
	ProviderLabelID   string `db:"provider_label_id"`
}

func newEmailRow(userID string, m domain.Message, now string) (emailRow, error) {
	row := emailRow{
		UserID:            userID,
		AccountEmail:      m.AccountEmail,
		ProviderMessageID: m.ID,
		ThreadID:          m.ThreadID,
		MessageIDHeader:   m.MessageIDHeader,
		ReferencesHeader:  strings.Join(m.References, " "),
		SenderName:        m.From.Name,
		SenderEmail:       m.From.Email,
		Subject:           m.Subject,
		Snippet:           m.Snippet,
		DateReceived:      formatTime(m.Date),
		IsRead:            m.IsRead,
		HasAttachments:    m.HasAttachments,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for _, f := range []struct {
		dest  *string
		addrs []domain.Address
	}{
		{&row.RecipientTo, m.To}, {&row.RecipientCC, m.CC}, {&row.RecipientBCC, m.BCC},
	} {
		addrs := f.addrs
		if addrs == nil {
			addrs = []domain.Address{}
		}
		b, err := json.Marshal(addrs)
		if err != nil {
			return row, fmt.Errorf("failed to marshal recipients for %s: %w", m.ID, err)
		}
		*f.dest = string(b)
	}
	return row, nil
}

func (r emailRow) toDomain() (domain.Message, error) {
	m := domain.Message{
		ID:              r.ProviderMessageID,
		ThreadID:        r.ThreadID,
		MessageIDHeader: r.MessageIDHeader,
		References:      strings.Fields(r.ReferencesHeader),
		From:            domain.Address{Name: r.SenderName, Email: r.SenderEmail},
		Subject:         r.Subject,
		Snippet:         r.Snippet,
		IsRead:          r.IsRead,
		HasAttachments:  r.HasAttachments,
		AccountEmail:    r.AccountEmail,
	}
	for _, f := range []struct {
		raw  string
		dest *[]domain.Address
	}{
		{r.RecipientTo, &m.To}, {r.RecipientCC, &m.CC}, {r.RecipientBCC, &m.BCC},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dest); err != nil {
			return m, fmt.Errorf("failed to unmarshal recipients for %s: %w", r.ProviderMessageID, err)
		}
	}
	date, err := parseTime(r.DateReceived)
	if err != nil {
		return m, fmt.Errorf("failed to parse date_received: %w", err)
	}
	m.Date = date
	return m, nil
}

// UpsertEmails writes flattened messages and reconciles their label links:
// links for current labels are inserted, links for labels no longer on the
// message are removed.
func (s *Store) UpsertEmails(ctx context.Context, userID string, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.stamp()
	for _, m := range msgs {
		row, err := newEmailRow(userID, m, now)
		if err != nil {
			return err
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO emails (user_id, account_email, provider_message_id, thread_id, message_id_header,
				references_header, sender_name, sender_email, recipient_to, recipient_cc, recipient_bcc,
				subject, snippet, date_received, is_read, has_attachments, created_at, updated_at)
			VALUES (:user_id, :account_email, :provider_message_id, :thread_id, :message_id_header,
				:references_header, :sender_name, :sender_email, :recipient_to, :recipient_cc, :recipient_bcc,
				:subject, :snippet, :date_received, :is_read, :has_attachments, :created_at, :updated_at)
			ON CONFLICT (user_id, account_email, provider_message_id) DO UPDATE SET
				thread_id         = excluded.thread_id,
				message_id_header = excluded.message_id_header,
				references_header = excluded.references_header,
				sender_name       = excluded.sender_name,
				sender_email      = excluded.sender_email,
				recipient_to      = excluded.recipient_to,
				recipient_cc      = excluded.recipient_cc,
				recipient_bcc     = excluded.recipient_bcc,
				subject           = excluded.subject,
				snippet           = excluded.snippet,
				date_received     = excluded.date_received,
				is_read           = excluded.is_read,
				has_attachments   = excluded.has_attachments,
				updated_at        = excluded.updated_at`, row)
		if err != nil {
			return fmt.Errorf("failed to upsert email %s: %w", m.ID, err)
		}

		if err := s.syncLinks(ctx, tx, userID, m, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit email upsert: %w", err)
	}
	return nil
}

func (s *Store) syncLinks(ctx context.Context, tx *sqlx.Tx, userID string, m domain.Message, now string) error {
	for _, labelID := range m.LabelIDs {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO email_labels (user_id, account_email, provider_message_id, provider_label_id, assigned_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (user_id, account_email, provider_message_id, provider_label_id) DO NOTHING`),
			userID, m.AccountEmail, m.ID, labelID, now)
		if err != nil {
			return fmt.Errorf("failed to link label %s to %s: %w", labelID, m.ID, err)
		}
	}

	query := `DELETE FROM email_labels WHERE user_id = ? AND account_email = ? AND provider_message_id = ?`
	args := []any{userID, m.AccountEmail, m.ID}
	if len(m.LabelIDs) > 0 {
		var err error
		query, args, err = sqlx.In(query+` AND provider_label_id NOT IN (?)`, userID, m.AccountEmail, m.ID, m.LabelIDs)
		if err != nil {
			return fmt.Errorf("failed to build stale link query: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to prune labels of %s: %w", m.ID, err)
	}
	return nil
}

// ListEmails returns flattened messages newest first with their label ids.
func (s *Store) ListEmails(ctx context.Context, opts store.ListEmailOptions) ([]domain.Message, error) {
	query := `SELECT e.* FROM emails e WHERE e.user_id = ?`
	args := []any{opts.UserID}
	if opts.AccountEmail != "" {
		query += ` AND e.account_email = ?`
		args = append(args, opts.AccountEmail)
	}
	if opts.LabelID != "" {
		query += ` AND EXISTS (SELECT 1 FROM email_labels l
			WHERE l.user_id = e.user_id AND l.account_email = e.account_email
			AND l.provider_message_id = e.provider_message_id AND l.provider_label_id = ?)`
		args = append(args, opts.LabelID)
	}
	query += ` ORDER BY e.date_received DESC, e.provider_message_id`
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
		if opts.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", opts.Offset)
		}
	}

	var rows []emailRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	msgs := make([]domain.Message, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		m, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
		ids = append(ids, r.ProviderMessageID)
	}

	labels, err := s.labelsFor(ctx, opts.UserID, ids)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].LabelIDs = labels[msgs[i].AccountEmail+"\x00"+msgs[i].ID]
	}
	return msgs, nil
}

// labelsFor loads label links for the given message ids keyed by
// account and message id.
func (s *Store) labelsFor(ctx context.Context, userID string, ids []string) (map[string][]string, error) {
	query, args, err := sqlx.In(`
		SELECT account_email, provider_message_id, provider_label_id FROM email_labels
		WHERE user_id = ? AND provider_message_id IN (?)
		ORDER BY assigned_at, provider_label_id`, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build label query: %w", err)
	}

	var links []linkRow
	if err := s.db.SelectContext(ctx, &links, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load email labels: %w", err)
	}

	out := make(map[string][]string, len(ids))
	for _, l := range links {
		key := l.AccountEmail + "\x00" + l.ProviderMessageID
		out[key] = append(out[key], l.ProviderLabelID)
	}
	return out, nil
}
