package app

import (
	"slices"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
)

// Repository holds the head messages shown for each account. Replace is
// used after a full refresh, Append after a further page. Identity is the
// provider message id and the first copy seen is kept.
//
// It is not safe for concurrent use; the Coordinator guards it.
type Repository struct {
	byAccount map[string][]domain.Message
}

// NewRepository returns an empty repository.
func NewRepository() *Repository {
	return &Repository{byAccount: make(map[string][]domain.Message)}
}

// Replace sets the account's list, dropping duplicate ids.
func (r *Repository) Replace(account string, msgs []domain.Message) {
	r.byAccount[account] = dedupe(nil, msgs)
}

// ReplaceAll swaps the whole map. Accounts missing from lists are dropped.
func (r *Repository) ReplaceAll(lists map[string][]domain.Message) {
	next := make(map[string][]domain.Message, len(lists))
	for account, msgs := range lists {
		next[account] = dedupe(nil, msgs)
	}
	r.byAccount = next
}

// Append adds messages after the existing ones, skipping ids already
// present. It returns how many were added.
func (r *Repository) Append(account string, msgs []domain.Message) int {
	before := len(r.byAccount[account])
	r.byAccount[account] = dedupe(r.byAccount[account], msgs)
	return len(r.byAccount[account]) - before
}

// Clear empties the account's list but keeps the account visible.
func (r *Repository) Clear(account string) {
	r.byAccount[account] = []domain.Message{}
}

// Remove forgets the account entirely.
func (r *Repository) Remove(account string) {
	delete(r.byAccount, account)
}

// List returns a copy of the account's list.
func (r *Repository) List(account string) []domain.Message {
	return slices.Clone(r.byAccount[account])
}

// Len returns the number of heads listed for the account.
func (r *Repository) Len(account string) int {
	return len(r.byAccount[account])
}

// Index returns the position of the head message with the given id, or -1.
func (r *Repository) Index(account, id string) int {
	return slices.IndexFunc(r.byAccount[account], func(m domain.Message) bool {
		return m.ID == id
	})
}

// Snapshot copies every list. Messages are shared by value; callers must
// not mutate their slices.
func (r *Repository) Snapshot() map[string][]domain.Message {
	out := make(map[string][]domain.Message, len(r.byAccount))
	for account, msgs := range r.byAccount {
		out[account] = slices.Clone(msgs)
	}
	return out
}

// Update applies fn to the message with the given id, whether it is a head
// or part of a head's history. fn receives a copy it may modify freely.
// It returns the updated message and whether it was found.
func (r *Repository) Update(account, id string, fn func(*domain.Message)) (domain.Message, bool) {
	list := r.byAccount[account]
	for i := range list {
		if list[i].ID == id {
			updated := list[i]
			fn(&updated)
			list = slices.Clone(list)
			list[i] = updated
			r.byAccount[account] = list
			return updated, true
		}
		for j := range list[i].History {
			if list[i].History[j].ID != id {
				continue
			}
			head := list[i]
			head.History = slices.Clone(head.History)
			fn(&head.History[j])
			updated := head.History[j]
			list = slices.Clone(list)
			list[i] = head
			r.byAccount[account] = list
			return updated, true
		}
	}
	return domain.Message{}, false
}

func dedupe(existing, incoming []domain.Message) []domain.Message {
	seen := make(map[string]bool, len(existing)+len(incoming))
	out := make([]domain.Message, 0, len(existing)+len(incoming))
	for _, m := range existing {
		seen[m.ID] = true
		out = append(out, m)
	}
	for _, m := range incoming {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	return out
}
