package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/app"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
)

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	return fprintJSON(os.Stdout, v)
}

func fprintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Account JSON types (account list)
// ---------------------------------------------------------------------------

type jsonAccount struct {
	Email        string `json:"email"`
	Provider     string `json:"provider"`
	CreatedAt    string `json:"created_at"`
	LastSyncedAt string `json:"last_synced_at,omitempty"`
}

func toJSONAccounts(accounts []domain.Account) []jsonAccount {
	out := make([]jsonAccount, 0, len(accounts))
	for _, a := range accounts {
		ja := jsonAccount{
			Email:     a.Email,
			Provider:  a.Provider,
			CreatedAt: a.CreatedAt.Format(time.DateOnly),
		}
		if !a.LastSyncedAt.IsZero() {
			ja.LastSyncedAt = a.LastSyncedAt.Format(time.RFC3339)
		}
		out = append(out, ja)
	}
	return out
}

// ---------------------------------------------------------------------------
// Thread head JSON types (list, more, offline)
// ---------------------------------------------------------------------------

type jsonHead struct {
	ID           string      `json:"id"`
	ThreadID     string      `json:"thread_id"`
	Account      string      `json:"account"`
	Subject      string      `json:"subject"`
	From         jsonAddress `json:"from"`
	Date         string      `json:"date"`
	MessageCount int         `json:"message_count"`
	HasUnread    bool        `json:"has_unread"`
	Snippet      string      `json:"snippet,omitempty"`
	Labels       []string    `json:"labels,omitempty"`
}

func toJSONHeads(heads []domain.Message) []jsonHead {
	out := make([]jsonHead, 0, len(heads))
	for _, h := range heads {
		out = append(out, jsonHead{
			ID:           h.ID,
			ThreadID:     h.ThreadID,
			Account:      h.AccountEmail,
			Subject:      h.Subject,
			From:         toJSONAddress(h.From),
			Date:         h.Date.Format(time.RFC3339),
			MessageCount: h.MessageCount(),
			HasUnread:    threadUnread(h),
			Snippet:      h.Snippet,
			Labels:       h.LabelIDs,
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// Message JSON type (read)
// ---------------------------------------------------------------------------

type jsonMessage struct {
	ID             string        `json:"id"`
	ThreadID       string        `json:"thread_id"`
	Account        string        `json:"account"`
	From           jsonAddress   `json:"from"`
	To             []jsonAddress `json:"to,omitempty"`
	CC             []jsonAddress `json:"cc,omitempty"`
	Subject        string        `json:"subject"`
	Body           string        `json:"body"`
	Date           string        `json:"date"`
	IsRead         bool          `json:"is_read"`
	HasAttachments bool          `json:"has_attachments"`
	Labels         []string      `json:"labels,omitempty"`
}

func toJSONMessage(m domain.Message) jsonMessage {
	return jsonMessage{
		ID:             m.ID,
		ThreadID:       m.ThreadID,
		Account:        m.AccountEmail,
		From:           toJSONAddress(m.From),
		To:             toJSONAddresses(m.To),
		CC:             toJSONAddresses(m.CC),
		Subject:        m.Subject,
		Body:           m.Body,
		Date:           m.Date.Format(time.RFC3339),
		IsRead:         m.IsRead,
		HasAttachments: m.HasAttachments,
		Labels:         m.LabelIDs,
	}
}

// ---------------------------------------------------------------------------
// Label JSON type (labels)
// ---------------------------------------------------------------------------

type jsonLabel struct {
	Account string `json:"account"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Color   string `json:"color,omitempty"`
}

func toJSONLabels(labels []domain.Label) []jsonLabel {
	out := make([]jsonLabel, 0, len(labels))
	for _, l := range labels {
		out = append(out, jsonLabel{
			Account: l.AccountEmail,
			ID:      l.ID,
			Name:    l.Name,
			Type:    string(l.Type),
			Color:   l.Color,
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// Refresh JSON type (sync)
// ---------------------------------------------------------------------------

type jsonRefresh struct {
	OK             bool     `json:"ok"`
	Accounts       int      `json:"accounts"`
	Threads        int      `json:"threads"`
	FailedAccounts []string `json:"failed_accounts,omitempty"`
	Notice         string   `json:"notice,omitempty"`
}

func toJSONRefresh(res app.RefreshResult, notice string) jsonRefresh {
	return jsonRefresh{
		OK:             !res.Failed,
		Accounts:       res.Accounts,
		Threads:        res.Threads,
		FailedAccounts: res.FailedAccounts,
		Notice:         notice,
	}
}

// ---------------------------------------------------------------------------
// Address JSON type (shared)
// ---------------------------------------------------------------------------

type jsonAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

func toJSONAddress(a domain.Address) jsonAddress {
	return jsonAddress{Name: a.Name, Email: a.Email}
}

func toJSONAddresses(addrs []domain.Address) []jsonAddress {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]jsonAddress, len(addrs))
	for i, a := range addrs {
		out[i] = toJSONAddress(a)
	}
	return out
}

// ---------------------------------------------------------------------------
// Action JSON type (account add/remove, mark-read, send)
// ---------------------------------------------------------------------------

type jsonAction struct {
	OK        bool   `json:"ok"`
	Action    string `json:"action"`
	MessageID string `json:"message_id,omitempty"`
	Email     string `json:"email,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}
