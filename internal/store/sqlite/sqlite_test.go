package sqlite

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/store"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNew_CreatesTables(t *testing.T) {
	db := newTestDB(t)

	rows, err := db.db.QueryContext(context.Background(), "SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		t.Fatalf("query sqlite_master error: %v", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan error: %v", err)
		}
		tables = append(tables, name)
	}

	for _, exp := range []string{"accounts", "emails", "labels", "meta"} {
		if !slices.Contains(tables, exp) {
			t.Errorf("expected table %q not found in %v", exp, tables)
		}
	}
}

func TestLastUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	got, err := db.LastUser(ctx)
	if err != nil {
		t.Fatalf("LastUser() error: %v", err)
	}
	if got != "" {
		t.Errorf("LastUser() on empty cache = %q, want empty", got)
	}

	for _, id := range []string{"user-1", "user-2"} {
		if err := db.SetLastUser(ctx, id); err != nil {
			t.Fatalf("SetLastUser(%q) error: %v", id, err)
		}
	}
	got, err = db.LastUser(ctx)
	if err != nil {
		t.Fatalf("LastUser() error: %v", err)
	}
	if got != "user-2" {
		t.Errorf("LastUser() = %q, want user-2", got)
	}
}

func TestNew_DropsOutdatedCacheTables(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	db, err := New(path)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	db.UpsertAccount(ctx, &domain.Account{UserID: "u1", Email: "a@test.com"})
	db.UpsertEmails(ctx, "u1", []domain.Message{{ID: "m1", AccountEmail: "a@test.com", Date: time.Unix(1, 0)}})
	if _, err := db.db.Exec(`PRAGMA user_version = 1`); err != nil {
		t.Fatalf("set user_version error: %v", err)
	}
	db.Close()

	db, err = New(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	emails, _ := db.ListEmails(ctx, store.ListEmailOptions{UserID: "u1"})
	if len(emails) != 0 {
		t.Errorf("got %d emails after upgrade, want 0", len(emails))
	}
	accounts, _ := db.ListAccounts(ctx, "u1")
	if len(accounts) != 1 {
		t.Errorf("got %d accounts after upgrade, want 1 kept", len(accounts))
	}
	var version int
	db.db.QueryRow(`PRAGMA user_version`).Scan(&version)
	if version != schemaVersion {
		t.Errorf("user_version = %d, want %d", version, schemaVersion)
	}
}
