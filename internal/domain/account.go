package domain

import "time"

// Account is one connected mailbox owned by a signed-in user.
type Account struct {
	UserID       string
	Email        string
	Provider     string
	DisplayName  string
	LastSyncedAt time.Time
	CreatedAt    time.Time
}
