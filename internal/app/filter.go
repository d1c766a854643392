package app

import (
	"context"
	"sync"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/provider"
)

// AllMailKey is the filter key used when no label is selected and the
// listing is driven by DefaultQuery instead.
const AllMailKey = "all-mail"

// DefaultQuery excludes spam and trash from the "all mail" listing.
const DefaultQuery = "-in:spam -in:trash"

// Filter is an account selection combined with a label selection. Empty
// fields mean "all inboxes" and "all mail".
type Filter struct {
	Account string
	LabelID string
}

// Key identifies the label selection for cursor bookkeeping, so a cursor
// from one label is never reused for another.
func (f Filter) Key() string {
	if f.LabelID == "" {
		return AllMailKey
	}
	return "label:" + f.LabelID
}

// LabelIDs returns the label ids to send to the provider.
func (f Filter) LabelIDs() []string {
	if f.LabelID == "" {
		return nil
	}
	return []string{f.LabelID}
}

// Query returns the provider search query, used only without a label.
func (f Filter) Query() string {
	if f.LabelID == "" {
		return DefaultQuery
	}
	return ""
}

// Includes reports whether account is covered by the account selection.
func (f Filter) Includes(account string) bool {
	return f.Account == "" || f.Account == account
}

// ListOptions builds the provider request for one page.
func (f Filter) ListOptions(pageToken string, pageSize int) provider.ListOptions {
	return provider.ListOptions{
		PageToken:  pageToken,
		MaxResults: pageSize,
		LabelIDs:   f.LabelIDs(),
		Query:      f.Query(),
	}
}

// FilterModel holds the current account and label selection. Changing
// either one clears the affected lists right away and starts a refresh in
// the background.
type FilterModel struct {
	ctx   context.Context
	coord *Coordinator

	mu     sync.Mutex
	filter Filter
	wg     sync.WaitGroup
	last   RefreshResult
	err    error
}

// NewFilterModel starts on "all inboxes" and "all mail".
func NewFilterModel(ctx context.Context, coord *Coordinator) *FilterModel {
	return &FilterModel{ctx: ctx, coord: coord}
}

// Filter returns the current selection.
func (m *FilterModel) Filter() Filter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter
}

// SelectAccount selects one account, or all inboxes when account is "".
func (m *FilterModel) SelectAccount(account string) {
	m.mu.Lock()
	m.filter.Account = account
	f := m.filter
	m.mu.Unlock()
	m.apply(f)
}

// SelectLabel selects one label, or all mail when labelID is "".
func (m *FilterModel) SelectLabel(labelID string) {
	m.mu.Lock()
	m.filter.LabelID = labelID
	f := m.filter
	m.mu.Unlock()
	m.apply(f)
}

// Select replaces both selections at once and triggers a single refresh.
func (m *FilterModel) Select(f Filter) {
	m.mu.Lock()
	m.filter = f
	m.mu.Unlock()
	m.apply(f)
}

// Refresh re-runs the refresh for the current selection.
func (m *FilterModel) Refresh() {
	m.apply(m.Filter())
}

// Wait blocks until the triggered refreshes finished and returns the
// outcome of the one that finished last.
func (m *FilterModel) Wait() (RefreshResult, error) {
	m.wg.Wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.err
}

func (m *FilterModel) apply(f Filter) {
	var accounts []string
	for _, a := range m.coord.AccountEmails() {
		if f.Includes(a) {
			accounts = append(accounts, a)
		}
	}
	m.coord.Invalidate(accounts, f)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		var (
			res RefreshResult
			err error
		)
		if f.Account != "" {
			res, err = m.coord.RefreshFilter(m.ctx, f.Account, f)
		} else {
			res, err = m.coord.RefreshAll(m.ctx, m.coord.AccountEmails(), f)
		}
		m.mu.Lock()
		m.last, m.err = res, err
		m.mu.Unlock()
	}()
}
