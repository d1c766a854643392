// Package durable implements the cross-device relational mirror. It speaks
// plain SQL through sqlx so any driver with ON CONFLICT upserts can back it;
// the default is the pure-Go modernc.org/sqlite driver.
package durable

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/store"
)

// DefaultDriver is the database/sql driver used when none is configured.
const DefaultDriver = "sqlite"

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Store is a durable mirror backed by a relational database.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// New opens the database and applies the schema.
func New(driver, dsn string) (*Store, error) {
	if driver == "" {
		driver = DefaultDriver
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open durable store: %w", err)
	}
	if driver == DefaultDriver {
		if dsn == ":memory:" {
			// each connection would otherwise get its own database
			db.SetMaxOpenConns(1)
		}
		if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set busy timeout: %w", err)
		}
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		// rows written before millisecond precision
		return time.Parse(time.RFC3339, v)
	}
	return t, nil
}

// Compile-time interface compliance check.
var _ store.Durable = (*Store)(nil)
