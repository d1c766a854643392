package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/provider"
)

const userID = "me"

// metadataHeaders are requested when listing threads; bodies are fetched
// lazily through GetMessage.
var metadataHeaders = []string{
	"From", "To", "Cc", "Bcc", "Subject", "Date",
	"Message-ID", "References", "In-Reply-To",
}

// TokenStore loads and saves OAuth tokens per account.
type TokenStore interface {
	LoadToken(accountID string) (*oauth2.Token, error)
	SaveToken(accountID string, token *oauth2.Token) error
}

// ServiceFactory builds a Gmail service for an account.
type ServiceFactory func(ctx context.Context, account string) (*gmailapi.Service, error)

// Provider implements provider.Provider for any number of Gmail accounts.
type Provider struct {
	tokenStore  TokenStore
	newService  ServiceFactory
	logger      *slog.Logger
	qps         float64
	concurrency int

	mu       sync.Mutex
	services map[string]*gmailapi.Service
	limiters map[string]*rate.Limiter
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger for the provider.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithQPS sets the per-account request rate.
func WithQPS(qps float64) Option {
	return func(p *Provider) {
		if qps > 0 {
			p.qps = qps
		}
	}
}

// WithConcurrency sets the max parallel thread fetches within one page.
func WithConcurrency(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithServiceFactory replaces the keyring-backed service construction.
func WithServiceFactory(f ServiceFactory) Option {
	return func(p *Provider) {
		p.newService = f
	}
}

// New creates a Gmail provider that loads account tokens from tokenStore.
func New(tokenStore TokenStore, opts ...Option) *Provider {
	p := &Provider{
		tokenStore:  tokenStore,
		logger:      slog.Default(),
		qps:         5,
		concurrency: 8,
		services:    make(map[string]*gmailapi.Service),
		limiters:    make(map[string]*rate.Limiter),
	}
	p.newService = p.keyringService
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// keyringService loads the account token and creates the Gmail service.
func (p *Provider) keyringService(ctx context.Context, account string) (*gmailapi.Service, error) {
	if p.tokenStore == nil {
		return nil, fmt.Errorf("no token store configured")
	}
	token, err := p.tokenStore.LoadToken(account)
	if err != nil {
		return nil, fmt.Errorf("failed to load gmail token: %w", err)
	}
	ts := &savingTokenSource{
		base:    oauthConfig.TokenSource(context.Background(), token),
		account: account,
		store:   p.tokenStore,
		last:    token.AccessToken,
	}
	return gmailapi.NewService(ctx, option.WithTokenSource(oauth2.ReuseTokenSource(token, ts)))
}

// service lazily initializes the Gmail service for an account.
func (p *Provider) service(ctx context.Context, account string) (*gmailapi.Service, *rate.Limiter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	lim, ok := p.limiters[account]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(p.qps), max(1, int(p.qps)))
		p.limiters[account] = lim
	}
	if srv, ok := p.services[account]; ok {
		return srv, lim, nil
	}
	srv, err := p.newService(ctx, account)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create gmail service for %s: %w", account, err)
	}
	p.services[account] = srv
	return srv, lim, nil
}

// ListThreads lists a page of threads and fetches their message metadata.
func (p *Provider) ListThreads(ctx context.Context, account string, opts provider.ListOptions) (*provider.ThreadPage, error) {
	srv, lim, err := p.service(ctx, account)
	if err != nil {
		return nil, err
	}

	call := srv.Users.Threads.List(userID)
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = provider.DefaultPageSize
	}
	call = call.MaxResults(int64(maxResults))
	if opts.PageToken != "" {
		call = call.PageToken(opts.PageToken)
	}
	if len(opts.LabelIDs) > 0 {
		call = call.LabelIds(opts.LabelIDs...)
	}
	if opts.Query != "" {
		call = call.Q(opts.Query)
	}

	if err := lim.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate wait canceled: %w", err)
	}
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list gmail threads: %w", err)
	}

	threads := make([]provider.Thread, len(resp.Threads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, t := range resp.Threads {
		g.Go(func() error {
			if err := lim.Wait(gctx); err != nil {
				return fmt.Errorf("rate wait canceled: %w", err)
			}
			full, err := srv.Users.Threads.Get(userID, t.Id).
				Format("metadata").MetadataHeaders(metadataHeaders...).
				Context(gctx).Do()
			if err != nil {
				return fmt.Errorf("failed to get gmail thread %s: %w", t.Id, err)
			}
			threads[i] = mapThread(full)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Debug("listed threads", "account", account, "count", len(threads), "more", resp.NextPageToken != "")
	return &provider.ThreadPage{Threads: threads, NextPageToken: resp.NextPageToken}, nil
}

// GetMessage returns a single message with its body.
func (p *Provider) GetMessage(ctx context.Context, account, id string) (*provider.RawMessage, error) {
	srv, lim, err := p.service(ctx, account)
	if err != nil {
		return nil, err
	}
	if err := lim.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate wait canceled: %w", err)
	}

	msg, err := srv.Users.Messages.Get(userID, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get gmail message %s: %w", id, err)
	}
	raw := mapMessage(msg)
	return &raw, nil
}

// ModifyLabels adds and removes labels on a message and returns the
// provider's view of it afterwards.
func (p *Provider) ModifyLabels(ctx context.Context, account, id string, add, remove []string) (*provider.RawMessage, error) {
	srv, lim, err := p.service(ctx, account)
	if err != nil {
		return nil, err
	}
	if err := lim.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate wait canceled: %w", err)
	}

	req := &gmailapi.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}
	msg, err := srv.Users.Messages.Modify(userID, id, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to modify labels on message %s: %w", id, err)
	}
	raw := mapMessage(msg)
	return &raw, nil
}

// Send composes and sends an email via the Gmail API.
func (p *Provider) Send(ctx context.Context, account string, draft *domain.Draft) error {
	srv, lim, err := p.service(ctx, account)
	if err != nil {
		return err
	}
	if err := lim.Wait(ctx); err != nil {
		return fmt.Errorf("rate wait canceled: %w", err)
	}

	d := *draft
	if d.From.Email == "" {
		d.From.Email = account
	}
	msg := &gmailapi.Message{
		Raw:      base64.URLEncoding.EncodeToString([]byte(buildRawMessage(&d))),
		ThreadId: d.ThreadID,
	}
	if _, err := srv.Users.Messages.Send(userID, msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to send gmail message: %w", err)
	}
	return nil
}

// buildRawMessage constructs an RFC 2822 message from a draft.
func buildRawMessage(d *domain.Draft) string {
	var b strings.Builder

	b.WriteString("From: " + d.From.String() + "\r\n")
	b.WriteString("To: " + joinAddresses(d.To) + "\r\n")
	if len(d.CC) > 0 {
		b.WriteString("Cc: " + joinAddresses(d.CC) + "\r\n")
	}
	if len(d.BCC) > 0 {
		b.WriteString("Bcc: " + joinAddresses(d.BCC) + "\r\n")
	}
	b.WriteString("Subject: " + d.Subject + "\r\n")

	if d.InReplyTo != "" {
		b.WriteString("In-Reply-To: <" + d.InReplyTo + ">\r\n")
	}
	if len(d.References) > 0 {
		refs := make([]string, 0, len(d.References))
		for _, r := range d.References {
			refs = append(refs, "<"+r+">")
		}
		b.WriteString("References: " + strings.Join(refs, " ") + "\r\n")
	}

	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(d.Body)

	return b.String()
}

func joinAddresses(addrs []domain.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}

// ListLabels returns all labels of an account.
func (p *Provider) ListLabels(ctx context.Context, account string) ([]domain.Label, error) {
	srv, lim, err := p.service(ctx, account)
	if err != nil {
		return nil, err
	}
	if err := lim.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate wait canceled: %w", err)
	}

	resp, err := srv.Users.Labels.List(userID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list gmail labels: %w", err)
	}

	labels := make([]domain.Label, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		labelType := domain.LabelTypeUser
		if l.Type == "system" {
			labelType = domain.LabelTypeSystem
		}

		color := ""
		if l.Color != nil {
			color = l.Color.BackgroundColor
		}

		labels = append(labels, domain.Label{
			ID:           l.Id,
			AccountEmail: account,
			Name:         l.Name,
			Type:         labelType,
			Color:        color,
		})
	}
	return labels, nil
}

// GetProfile returns the email address of the account behind a token.
func GetProfile(ctx context.Context, token *oauth2.Token) (string, error) {
	srv, err := gmailapi.NewService(ctx, option.WithTokenSource(oauthConfig.TokenSource(ctx, token)))
	if err != nil {
		return "", fmt.Errorf("failed to create gmail service: %w", err)
	}
	profile, err := srv.Users.GetProfile(userID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get gmail profile: %w", err)
	}
	return profile.EmailAddress, nil
}

// savingTokenSource persists refreshed tokens back to the token store.
type savingTokenSource struct {
	base    oauth2.TokenSource
	account string
	store   TokenStore

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.store.SaveToken(s.account, tok); err != nil {
			return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
		}
	}
	return tok, nil
}

// Compile-time interface compliance check.
var _ provider.Provider = (*Provider)(nil)
