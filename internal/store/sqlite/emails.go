package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/store"
)

const emailColumns = `e.id, e.account_email, e.thread_id, e.message_id_header, e.references_header,
	e.in_reply_to, e.from_addr, e.from_name, e.to_addrs, e.cc_addrs, e.bcc_addrs,
	e.subject, e.snippet, e.body, e.date, e.is_read, e.has_attachments, e.label_ids`

// UpsertEmails inserts or updates flattened messages. A stored body is
// kept when the incoming message carries none.
func (s *DB) UpsertEmails(ctx context.Context, userID string, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO emails (id, account_email, user_id, thread_id, message_id_header, references_header,
			in_reply_to, from_addr, from_name, to_addrs, cc_addrs, bcc_addrs,
			subject, snippet, body, date, is_read, has_attachments, label_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, id, account_email) DO UPDATE SET
			thread_id         = excluded.thread_id,
			message_id_header = excluded.message_id_header,
			references_header = excluded.references_header,
			in_reply_to       = excluded.in_reply_to,
			from_addr         = excluded.from_addr,
			from_name         = excluded.from_name,
			to_addrs          = excluded.to_addrs,
			cc_addrs          = excluded.cc_addrs,
			bcc_addrs         = excluded.bcc_addrs,
			subject           = excluded.subject,
			snippet           = excluded.snippet,
			body              = CASE WHEN excluded.body != '' THEN excluded.body ELSE emails.body END,
			date              = excluded.date,
			is_read           = excluded.is_read,
			has_attachments   = excluded.has_attachments,
			label_ids         = excluded.label_ids`)
	if err != nil {
		return fmt.Errorf("failed to prepare email upsert: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		to, cc, bcc, labels, err := marshalLists(m)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			m.ID, m.AccountEmail, userID, m.ThreadID, m.MessageIDHeader,
			strings.Join(m.References, " "), m.InReplyTo,
			m.From.Email, m.From.Name, to, cc, bcc,
			m.Subject, m.Snippet, m.Body, formatTime(m.Date),
			m.IsRead, m.HasAttachments, labels,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert email %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit email upsert: %w", err)
	}
	return nil
}

func marshalLists(m domain.Message) (to, cc, bcc, labels string, err error) {
	enc := func(v any, what string) string {
		if err != nil {
			return ""
		}
		b, e := json.Marshal(v)
		if e != nil {
			err = fmt.Errorf("failed to marshal %s for email %s: %w", what, m.ID, e)
			return ""
		}
		return string(b)
	}
	to = enc(nonNil(m.To), "To addresses")
	cc = enc(nonNil(m.CC), "CC addresses")
	bcc = enc(nonNil(m.BCC), "BCC addresses")
	labelIDs := m.LabelIDs
	if labelIDs == nil {
		labelIDs = []string{}
	}
	labels = enc(labelIDs, "label ids")
	return to, cc, bcc, labels, err
}

func nonNil(a []domain.Address) []domain.Address {
	if a == nil {
		return []domain.Address{}
	}
	return a
}

// ListEmails returns flattened messages newest first, optionally narrowed
// to one account and one label.
func (s *DB) ListEmails(ctx context.Context, opts store.ListEmailOptions) ([]domain.Message, error) {
	query := `SELECT ` + emailColumns + ` FROM emails e WHERE e.user_id = ?`
	args := []any{opts.UserID}

	if opts.AccountEmail != "" {
		query += ` AND e.account_email = ?`
		args = append(args, opts.AccountEmail)
	}
	if opts.LabelID != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(e.label_ids) WHERE json_each.value = ?)`
		args = append(args, opts.LabelID)
	}
	query += ` ORDER BY e.date DESC, e.id`

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	defer rows.Close()
	return scanEmails(rows)
}

func scanEmails(rows *sql.Rows) ([]domain.Message, error) {
	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var refs, to, cc, bcc, date, labels string
		if err := rows.Scan(
			&m.ID, &m.AccountEmail, &m.ThreadID, &m.MessageIDHeader, &refs,
			&m.InReplyTo, &m.From.Email, &m.From.Name, &to, &cc, &bcc,
			&m.Subject, &m.Snippet, &m.Body, &date, &m.IsRead, &m.HasAttachments, &labels,
		); err != nil {
			return nil, fmt.Errorf("failed to scan email row: %w", err)
		}

		m.References = strings.Fields(refs)
		for _, f := range []struct {
			raw  string
			dest any
		}{
			{to, &m.To}, {cc, &m.CC}, {bcc, &m.BCC}, {labels, &m.LabelIDs},
		} {
			if err := json.Unmarshal([]byte(f.raw), f.dest); err != nil {
				return nil, fmt.Errorf("failed to unmarshal email %s: %w", m.ID, err)
			}
		}

		parsed, err := parseTime(date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse email date: %w", err)
		}
		m.Date = parsed
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate emails: %w", err)
	}
	return msgs, nil
}
