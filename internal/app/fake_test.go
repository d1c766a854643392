package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/mailheader"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/provider"
)

var errProvider = errors.New("provider unavailable")

type listCall struct {
	account string
	opts    provider.ListOptions
}

// fakeProvider serves canned pages keyed by account and page token.
type fakeProvider struct {
	mu          sync.Mutex
	pages       map[string]map[string]*provider.ThreadPage
	errs        map[string]error
	gate        chan struct{}
	listCalls   []listCall
	modifyCalls []string
	getCalls    []string
	labels      map[string][]domain.Label
	bodies      map[string]string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		pages:  make(map[string]map[string]*provider.ThreadPage),
		errs:   make(map[string]error),
		labels: make(map[string][]domain.Label),
		bodies: make(map[string]string),
	}
}

func (f *fakeProvider) setPage(account, token string, page *provider.ThreadPage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pages[account] == nil {
		f.pages[account] = make(map[string]*provider.ThreadPage)
	}
	f.pages[account][token] = page
}

func (f *fakeProvider) setErr(account string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[account] = err
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listCalls) + len(f.modifyCalls) + len(f.getCalls)
}

func (f *fakeProvider) ListThreads(ctx context.Context, account string, opts provider.ListOptions) (*provider.ThreadPage, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, listCall{account: account, opts: opts})
	err := f.errs[account]
	page := f.pages[account][opts.PageToken]
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if page == nil {
		return &provider.ThreadPage{}, nil
	}
	return page, nil
}

func (f *fakeProvider) GetMessage(ctx context.Context, account, id string) (*provider.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls = append(f.getCalls, id)
	if err := f.errs[account]; err != nil {
		return nil, err
	}
	return &provider.RawMessage{ID: id, Body: f.bodies[id], InternalDate: 1}, nil
}

func (f *fakeProvider) ModifyLabels(ctx context.Context, account, id string, add, remove []string) (*provider.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modifyCalls = append(f.modifyCalls, id)
	if err := f.errs[account]; err != nil {
		return nil, err
	}
	return &provider.RawMessage{ID: id}, nil
}

func (f *fakeProvider) Send(ctx context.Context, account string, draft *domain.Draft) error {
	return nil
}

func (f *fakeProvider) ListLabels(ctx context.Context, account string) ([]domain.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[account]; err != nil {
		return nil, err
	}
	return append([]domain.Label(nil), f.labels[account]...), nil
}

// makeThread builds a thread whose messages carry the given epoch-ms dates.
func makeThread(id string, dates ...int64) provider.Thread {
	t := provider.Thread{ID: id}
	for i, d := range dates {
		t.Messages = append(t.Messages, provider.RawMessage{
			ID:           fmt.Sprintf("%s-m%d", id, i),
			ThreadID:     id,
			InternalDate: d,
			LabelIDs:     []string{domain.LabelInbox, domain.LabelUnread},
			Headers: []mailheader.Header{
				{Name: "From", Value: "Sender <sender@example.com>"},
				{Name: "Subject", Value: "thread " + id},
			},
		})
	}
	return t
}

// makePage builds a page of single-message threads named prefix0..prefixN-1,
// newest first.
func makePage(prefix string, n int, base int64, next string) *provider.ThreadPage {
	page := &provider.ThreadPage{NextPageToken: next}
	for i := 0; i < n; i++ {
		page.Threads = append(page.Threads, makeThread(fmt.Sprintf("%s%d", prefix, i), base-int64(i)*1000))
	}
	return page
}
