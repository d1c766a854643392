package store

import (
	"context"
	"time"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
)

// Mirror is the persistence contract shared by the durable store and the
// local cache. Every call is scoped by the owning user id and every write
// is an idempotent upsert.
type Mirror interface {
	// Accounts
	UpsertAccount(ctx context.Context, account *domain.Account) error
	ListAccounts(ctx context.Context, userID string) ([]domain.Account, error)
	DeleteAccount(ctx context.Context, userID, accountEmail string) error
	MarkSynced(ctx context.Context, userID, accountEmail string, at time.Time) error

	// Labels
	UpsertLabels(ctx context.Context, userID string, labels []domain.Label) error
	ListLabels(ctx context.Context, userID, accountEmail string) ([]domain.Label, error)

	// Emails. Messages are stored flattened; History is ignored.
	UpsertEmails(ctx context.Context, userID string, msgs []domain.Message) error
	ListEmails(ctx context.Context, opts ListEmailOptions) ([]domain.Message, error)

	// Lifecycle
	Close() error
}

// Durable is the remote relational mirror shared across devices.
type Durable interface {
	Mirror
}

// Cache is the on-device mirror used for offline bootstrap.
type Cache interface {
	Mirror

	// SearchEmails matches query against subject, sender and snippet.
	SearchEmails(ctx context.Context, userID, query string) ([]domain.Message, error)

	// LastUser returns the user id recorded by the last confirmed session,
	// or "" when none was recorded.
	LastUser(ctx context.Context) (string, error)
	SetLastUser(ctx context.Context, userID string) error
}

// ListEmailOptions configures email listing queries. Results are ordered
// by date, newest first.
type ListEmailOptions struct {
	UserID       string
	AccountEmail string
	LabelID      string
	Limit        int
	Offset       int
}
