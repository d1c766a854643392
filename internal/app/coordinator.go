package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/provider"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/store"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/thread"
)

// Session reports the signed-in user. An empty id means nobody is signed in.
type Session interface {
	UserID() string
}

// StaticSession is a Session with a fixed user id.
type StaticSession string

func (s StaticSession) UserID() string { return string(s) }

const defaultConcurrency = 4

// RefreshResult summarizes one refresh. Per-account failures are collected
// in Err and never abort the other accounts.
type RefreshResult struct {
	Accounts       int
	Threads        int
	Failed         bool
	FailedAccounts []string
	Err            error
}

// Snapshot is a read-only copy of the coordinator state.
type Snapshot struct {
	UserID   string
	Accounts []domain.Account
	Messages map[string][]domain.Message
	Labels   map[string][]domain.Label
	Filter   Filter
	Notice   string
}

// Merged returns the heads of every account in one list, newest first.
func (s Snapshot) Merged() []domain.Message {
	var all []domain.Message
	for _, msgs := range s.Messages {
		all = append(all, msgs...)
	}
	thread.SortNewestFirst(all)
	return all
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithPageSize sets how many threads are requested per page.
func WithPageSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithConcurrency bounds how many accounts are fetched at once.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

type persistJob struct {
	op    string
	write func(ctx context.Context, m store.Mirror) error
}

// Coordinator owns the in-memory message lists, pagination cursors and
// labels. It fetches from the provider, threads the results and mirrors
// them to the durable store and the local cache in the background.
//
// All state changes happen under one mutex; readers get copies through
// Snapshot.
type Coordinator struct {
	session  Session
	provider provider.Provider
	durable  store.Durable
	cache    store.Cache
	logger   *slog.Logger

	pageSize    int
	concurrency int
	now         func() time.Time

	mu       sync.Mutex
	userID   string
	accounts []domain.Account
	repo     *Repository
	cursors  *Cursors
	labels   map[string][]domain.Label
	inFlight map[string]bool
	gens     map[string]uint64
	filter   Filter
	notice   string

	updates   chan struct{}
	jobs      chan persistJob
	pending   sync.WaitGroup
	closeOnce sync.Once
}

// New creates a Coordinator. durable and cache may be nil, in which case
// nothing is persisted to that tier.
func New(session Session, p provider.Provider, durable store.Durable, cache store.Cache, opts ...Option) *Coordinator {
	c := &Coordinator{
		session:     session,
		provider:    p,
		durable:     durable,
		cache:       cache,
		logger:      slog.Default(),
		pageSize:    provider.DefaultPageSize,
		concurrency: defaultConcurrency,
		now:         time.Now,
		repo:        NewRepository(),
		cursors:     NewCursors(),
		labels:      make(map[string][]domain.Label),
		inFlight:    make(map[string]bool),
		gens:        make(map[string]uint64),
		updates:     make(chan struct{}, 1),
		jobs:        make(chan persistJob, 64),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.runPersistence()
	return c
}

// Updates signals after every state change. Signals coalesce.
func (c *Coordinator) Updates() <-chan struct{} {
	return c.updates
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	labels := make(map[string][]domain.Label, len(c.labels))
	for k, v := range c.labels {
		labels[k] = slices.Clone(v)
	}
	return Snapshot{
		UserID:   c.userID,
		Accounts: slices.Clone(c.accounts),
		Messages: c.repo.Snapshot(),
		Labels:   labels,
		Filter:   c.filter,
		Notice:   c.notice,
	}
}

// Accounts returns the registered accounts.
func (c *Coordinator) Accounts() []domain.Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.accounts)
}

// AccountEmails returns the email addresses of the registered accounts.
func (c *Coordinator) AccountEmails() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	emails := make([]string, 0, len(c.accounts))
	for _, a := range c.accounts {
		emails = append(emails, a.Email)
	}
	return emails
}

// Wait blocks until every queued persistence write has finished.
func (c *Coordinator) Wait() {
	c.pending.Wait()
}

// Close drains the persistence queue. The coordinator must not be used
// afterwards.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.pending.Wait()
		close(c.jobs)
	})
}

// RefreshAll fetches the first page of every account covered by f, all
// accounts at once, and publishes the combined result only when every
// account has finished. Failed or empty accounts end up with an empty list.
func (c *Coordinator) RefreshAll(ctx context.Context, accounts []string, f Filter) (RefreshResult, error) {
	userID, err := c.requireUser()
	if err != nil {
		return RefreshResult{}, err
	}

	var eligible []string
	for _, a := range accounts {
		if f.Includes(a) && !slices.Contains(eligible, a) {
			eligible = append(eligible, a)
		}
	}

	type outcome struct {
		heads []domain.Message
		next  string
		err   error
	}
	outcomes := make([]outcome, len(eligible))

	c.mu.Lock()
	gens := make([]uint64, len(eligible))
	for i, account := range eligible {
		gens[i] = c.beginFetch(account)
	}
	c.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, account := range eligible {
		g.Go(func() error {
			heads, next, err := c.fetchPage(ctx, account, f, "")
			outcomes[i] = outcome{heads: heads, next: next, err: err}
			return nil
		})
	}
	_ = g.Wait()

	res := RefreshResult{Accounts: len(eligible)}
	var merr *multierror.Error
	lists := make(map[string][]domain.Message, len(eligible))

	c.mu.Lock()
	for i, account := range eligible {
		c.endFetch(account, gens[i])
		o := outcomes[i]
		if o.err != nil {
			merr = multierror.Append(merr, &AccountError{Account: account, Err: o.err})
			res.FailedAccounts = append(res.FailedAccounts, account)
			lists[account] = []domain.Message{}
			c.cursors.Clear(account, f.Key())
			continue
		}
		lists[account] = o.heads
		res.Threads += len(o.heads)
		c.cursors.SetCursor(account, f.Key(), o.next)
	}
	c.repo.ReplaceAll(lists)
	c.filter = f
	c.userID = userID
	c.notice = ""
	if merr != nil {
		c.notice = FailureNotice
	}
	c.mu.Unlock()
	c.publish()

	for i, account := range eligible {
		if outcomes[i].err == nil {
			c.persistHeads(userID, account, outcomes[i].heads)
		}
	}
	c.persistLastUser(userID)

	res.Err = merr.ErrorOrNil()
	res.Failed = res.Err != nil
	for _, a := range res.FailedAccounts {
		c.logger.Warn("account refresh failed", "account", a)
	}
	c.logger.Info("refresh complete", "accounts", res.Accounts, "threads", res.Threads, "failed", len(res.FailedAccounts), "filter", f.Key())
	return res, nil
}

// RefreshFilter refreshes exactly one account. Its list is cleared and its
// cursors reset before the fetch starts so stale results are never shown.
func (c *Coordinator) RefreshFilter(ctx context.Context, account string, f Filter) (RefreshResult, error) {
	userID, err := c.requireUser()
	if err != nil {
		return RefreshResult{}, err
	}
	f.Account = account

	c.mu.Lock()
	c.repo.Clear(account)
	c.cursors.Reset(account)
	c.filter = f
	gen := c.beginFetch(account)
	c.mu.Unlock()
	c.publish()

	heads, next, err := c.fetchPage(ctx, account, f, "")

	res := RefreshResult{Accounts: 1}
	c.mu.Lock()
	c.endFetch(account, gen)
	c.userID = userID
	if err != nil {
		c.repo.Clear(account)
		c.cursors.Clear(account, f.Key())
		c.notice = FailureNotice
		res.Failed = true
		res.FailedAccounts = []string{account}
		res.Err = multierror.Append(nil, &AccountError{Account: account, Err: err}).ErrorOrNil()
	} else {
		c.repo.Replace(account, heads)
		c.cursors.SetCursor(account, f.Key(), next)
		c.notice = ""
		res.Threads = len(heads)
	}
	c.mu.Unlock()
	c.publish()

	if err != nil {
		c.logger.Warn("account refresh failed", "account", account, "error", err)
		return res, nil
	}
	c.persistHeads(userID, account, heads)
	c.persistLastUser(userID)
	c.logger.Info("refresh complete", "account", account, "threads", len(heads), "filter", f.Key())
	return res, nil
}

// LoadMore fetches the next page for the account of item when item is
// near the end of that account's list. It reports whether a page was
// appended. A failed fetch drops the cursor; nothing is retried.
func (c *Coordinator) LoadMore(ctx context.Context, item domain.Message) (bool, error) {
	account := item.AccountEmail

	c.mu.Lock()
	f := c.filter
	key := f.Key()
	token, state := c.cursors.CursorFor(account, key)
	idx := c.repo.Index(account, item.ID)
	if idx < 0 || !ShouldPaginate(c.repo.Len(account), idx, c.inFlight[account], state) {
		c.mu.Unlock()
		return false, nil
	}
	userID := c.session.UserID()
	if userID == "" {
		c.notice = SignInNotice
		c.mu.Unlock()
		return false, ErrNotAuthenticated
	}
	gen := c.beginFetch(account)
	c.mu.Unlock()

	c.logger.Debug("loading next page", "account", account, "filter", key)
	heads, next, err := c.fetchPage(ctx, account, f, token)

	c.mu.Lock()
	if !c.endFetch(account, gen) || c.filter != f {
		// a refresh or a new selection started while the page was in flight
		c.mu.Unlock()
		c.logger.Debug("dropping superseded page", "account", account)
		return false, nil
	}
	if err != nil {
		c.cursors.Clear(account, key)
		c.mu.Unlock()
		c.logger.Warn("pagination failed", "account", account, "error", err)
		return false, &AccountError{Account: account, Err: err}
	}
	added := c.repo.Append(account, heads)
	c.cursors.SetCursor(account, key, next)
	c.mu.Unlock()
	c.publish()

	c.persistHeads(userID, account, heads)
	c.logger.Debug("page appended", "account", account, "added", added, "more", next != "")
	return true, nil
}

// MarkRead removes the unread label from msg at the provider and then from
// the cached copy. Messages that are already read cause no provider call.
func (c *Coordinator) MarkRead(ctx context.Context, msg domain.Message) error {
	if !msg.HasLabel(domain.LabelUnread) {
		return nil
	}
	userID, err := c.requireUser()
	if err != nil {
		return err
	}

	if _, err := c.provider.ModifyLabels(ctx, msg.AccountEmail, msg.ID, nil, []string{domain.LabelUnread}); err != nil {
		return fmt.Errorf("failed to mark %s read: %w", msg.ID, &AccountError{Account: msg.AccountEmail, Err: err})
	}

	c.mu.Lock()
	updated, ok := c.repo.Update(msg.AccountEmail, msg.ID, markRead)
	c.mu.Unlock()
	if !ok {
		updated = msg
		markRead(&updated)
	}
	updated.History = nil
	c.publish()

	c.enqueue("mark read", func(ctx context.Context, m store.Mirror) error {
		return m.UpsertEmails(ctx, userID, []domain.Message{updated})
	})
	return nil
}

// beginFetch marks account as having a fetch in flight and returns the
// generation that fetch belongs to. Callers hold c.mu.
func (c *Coordinator) beginFetch(account string) uint64 {
	c.gens[account]++
	c.inFlight[account] = true
	return c.gens[account]
}

// endFetch clears the in-flight mark when gen is still the latest fetch
// for account. It reports false when a newer fetch started meanwhile.
// Callers hold c.mu.
func (c *Coordinator) endFetch(account string, gen uint64) bool {
	if c.gens[account] != gen {
		return false
	}
	delete(c.inFlight, account)
	return true
}

func markRead(m *domain.Message) {
	m.LabelIDs = slices.DeleteFunc(slices.Clone(m.LabelIDs), func(l string) bool {
		return l == domain.LabelUnread
	})
	m.IsRead = true
}

// Bootstrap restores the last known user's accounts, labels and messages
// from the local cache. It never calls the provider.
func (c *Coordinator) Bootstrap(ctx context.Context) error {
	if c.cache == nil {
		return errors.New("no local cache configured")
	}
	userID, err := c.cache.LastUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to read last user: %w", err)
	}
	if userID == "" {
		c.logger.Info("no cached session to restore")
		return nil
	}

	accounts, err := c.cache.ListAccounts(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load cached accounts: %w", err)
	}
	msgs, err := c.cache.ListEmails(ctx, store.ListEmailOptions{UserID: userID})
	if err != nil {
		return fmt.Errorf("failed to load cached emails: %w", err)
	}

	byAccount := make(map[string][]domain.Message)
	for _, m := range msgs {
		byAccount[m.AccountEmail] = append(byAccount[m.AccountEmail], m)
	}
	lists := make(map[string][]domain.Message, len(byAccount))
	for account, flat := range byAccount {
		lists[account] = thread.Group(flat)
	}

	labels := make(map[string][]domain.Label, len(accounts))
	for _, a := range accounts {
		if _, ok := lists[a.Email]; !ok {
			lists[a.Email] = []domain.Message{}
		}
		ls, err := c.cache.ListLabels(ctx, userID, a.Email)
		if err != nil {
			c.logger.Warn("failed to load cached labels", "account", a.Email, "error", err)
			continue
		}
		labels[a.Email] = ls
	}

	c.mu.Lock()
	c.userID = userID
	c.accounts = accounts
	c.repo.ReplaceAll(lists)
	c.labels = labels
	c.cursors.ResetAll()
	c.mu.Unlock()
	c.publish()

	c.logger.Info("restored from local cache", "user", userID, "accounts", len(accounts), "messages", len(msgs))
	return nil
}

// Invalidate clears the lists and cursors of accounts ahead of a refresh
// for a new selection.
func (c *Coordinator) Invalidate(accounts []string, f Filter) {
	c.mu.Lock()
	for _, a := range accounts {
		c.repo.Clear(a)
		c.cursors.Reset(a)
	}
	c.filter = f
	c.mu.Unlock()
	c.publish()
}

// RegisterAccount adds a signed-in account for the current user.
func (c *Coordinator) RegisterAccount(ctx context.Context, acct domain.Account) error {
	userID, err := c.requireUser()
	if err != nil {
		return err
	}
	acct.UserID = userID
	if acct.Provider == "" {
		acct.Provider = "gmail"
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = c.now()
	}

	c.mu.Lock()
	c.userID = userID
	i := slices.IndexFunc(c.accounts, func(a domain.Account) bool { return a.Email == acct.Email })
	if i >= 0 {
		acct.CreatedAt = c.accounts[i].CreatedAt
		c.accounts[i] = acct
	} else {
		c.accounts = append(c.accounts, acct)
	}
	c.mu.Unlock()
	c.publish()

	c.enqueue("upsert account", func(ctx context.Context, m store.Mirror) error {
		return m.UpsertAccount(ctx, &acct)
	})
	c.persistLastUser(userID)
	c.logger.Info("account registered", "account", acct.Email)
	return nil
}

// RemoveAccount forgets an account and deletes its mirrored rows.
func (c *Coordinator) RemoveAccount(ctx context.Context, email string) error {
	userID, err := c.requireUser()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.accounts = slices.DeleteFunc(c.accounts, func(a domain.Account) bool { return a.Email == email })
	c.repo.Remove(email)
	c.cursors.Reset(email)
	delete(c.labels, email)
	delete(c.inFlight, email)
	// pages still in flight for the account are dropped on arrival
	c.gens[email]++
	c.mu.Unlock()
	c.publish()

	c.enqueue("delete account", func(ctx context.Context, m store.Mirror) error {
		return m.DeleteAccount(ctx, userID, email)
	})
	c.logger.Info("account removed", "account", email)
	return nil
}

// RefreshLabels fetches an account's labels and mirrors them.
func (c *Coordinator) RefreshLabels(ctx context.Context, account string) ([]domain.Label, error) {
	userID, err := c.requireUser()
	if err != nil {
		return nil, err
	}
	labels, err := c.provider.ListLabels(ctx, account)
	if err != nil {
		return nil, &AccountError{Account: account, Err: err}
	}
	for i := range labels {
		labels[i].AccountEmail = account
	}

	c.mu.Lock()
	c.labels[account] = labels
	c.mu.Unlock()
	c.publish()

	c.enqueue("upsert labels", func(ctx context.Context, m store.Mirror) error {
		return m.UpsertLabels(ctx, userID, labels)
	})
	return slices.Clone(labels), nil
}

// LoadBody fetches the full body of msg when it is not loaded yet and
// stores it on the cached copy.
func (c *Coordinator) LoadBody(ctx context.Context, msg domain.Message) (domain.Message, error) {
	if msg.Body != "" {
		return msg, nil
	}
	userID, err := c.requireUser()
	if err != nil {
		return msg, err
	}

	raw, err := c.provider.GetMessage(ctx, msg.AccountEmail, msg.ID)
	if err != nil {
		return msg, &AccountError{Account: msg.AccountEmail, Err: err}
	}
	full := thread.FromRaw(*raw, msg.AccountEmail, c.now)

	setBody := func(m *domain.Message) {
		m.Body = full.Body
		m.HasAttachments = full.HasAttachments
	}
	c.mu.Lock()
	c.repo.Update(msg.AccountEmail, msg.ID, setBody)
	c.mu.Unlock()
	setBody(&msg)
	c.publish()

	flat := msg
	flat.History = nil
	c.enqueue("store body", func(ctx context.Context, m store.Mirror) error {
		return m.UpsertEmails(ctx, userID, []domain.Message{flat})
	})
	return msg, nil
}

// Send hands a draft to the provider for the given account.
func (c *Coordinator) Send(ctx context.Context, account string, draft *domain.Draft) error {
	if _, err := c.requireUser(); err != nil {
		return err
	}
	if err := c.provider.Send(ctx, account, draft); err != nil {
		return &AccountError{Account: account, Err: err}
	}
	c.logger.Info("message sent", "account", account)
	return nil
}

func (c *Coordinator) requireUser() (string, error) {
	userID := c.session.UserID()
	if userID == "" {
		c.mu.Lock()
		c.notice = SignInNotice
		c.mu.Unlock()
		c.publish()
		return "", ErrNotAuthenticated
	}
	return userID, nil
}

// fetchPage fetches one page and assembles its threads, newest first.
func (c *Coordinator) fetchPage(ctx context.Context, account string, f Filter, token string) ([]domain.Message, string, error) {
	page, err := c.provider.ListThreads(ctx, account, f.ListOptions(token, c.pageSize))
	if err != nil {
		return nil, "", err
	}
	if page == nil {
		return []domain.Message{}, "", nil
	}

	heads := make([]domain.Message, 0, len(page.Threads))
	for _, t := range page.Threads {
		if head, ok := thread.Assemble(t.Messages, account, c.now); ok {
			heads = append(heads, head)
		}
	}
	thread.SortNewestFirst(heads)
	return heads, page.NextPageToken, nil
}

func (c *Coordinator) publish() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

func (c *Coordinator) persistHeads(userID, account string, heads []domain.Message) {
	var flat []domain.Message
	for _, h := range heads {
		flat = append(flat, h.Flatten()...)
	}
	at := c.now()
	c.enqueue("upsert emails", func(ctx context.Context, m store.Mirror) error {
		if err := m.UpsertEmails(ctx, userID, flat); err != nil {
			return err
		}
		return m.MarkSynced(ctx, userID, account, at)
	})
}

func (c *Coordinator) persistLastUser(userID string) {
	c.enqueue("record last user", func(ctx context.Context, m store.Mirror) error {
		if cache, ok := m.(store.Cache); ok {
			return cache.SetLastUser(ctx, userID)
		}
		return nil
	})
}

// enqueue schedules a write against the durable store and then the local
// cache. Writes run in order on one goroutine; failures are only logged.
func (c *Coordinator) enqueue(op string, write func(ctx context.Context, m store.Mirror) error) {
	if c.durable == nil && c.cache == nil {
		return
	}
	c.pending.Add(1)
	c.jobs <- persistJob{op: op, write: write}
}

func (c *Coordinator) runPersistence() {
	for job := range c.jobs {
		c.runJob(job)
	}
}

func (c *Coordinator) runJob(job persistJob) {
	defer c.pending.Done()
	ctx := context.Background()
	if c.durable != nil {
		if err := job.write(ctx, c.durable); err != nil {
			c.logger.Warn("durable store write failed", "op", job.op, "error", err)
		}
	}
	if c.cache != nil {
		if err := job.write(ctx, c.cache); err != nil {
			c.logger.Warn("local cache write failed", "op", job.op, "error", err)
		}
	}
}
