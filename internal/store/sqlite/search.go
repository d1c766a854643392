package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
)

// SearchEmails does a case-insensitive substring match over subject,
// sender and snippet, newest first.
func (s *DB) SearchEmails(ctx context.Context, userID, query string) ([]domain.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	pattern := "%" + escapeLike(query) + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+emailColumns+`
		FROM emails e
		WHERE e.user_id = ? AND (
			e.subject   LIKE ? ESCAPE '\' OR
			e.from_addr LIKE ? ESCAPE '\' OR
			e.from_name LIKE ? ESCAPE '\' OR
			e.snippet   LIKE ? ESCAPE '\')
		ORDER BY e.date DESC, e.id`,
		userID, pattern, pattern, pattern, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search emails: %w", err)
	}
	defer rows.Close()
	return scanEmails(rows)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
