package provider

import (
	"context"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/mailheader"
)

// DefaultPageSize is the number of threads requested per page when the
// caller does not say otherwise.
const DefaultPageSize = 20

type ListOptions struct {
	PageToken  string
	MaxResults int
	LabelIDs   []string
	Query      string
}

// RawMessage is a provider message before it is mapped to a domain.Message.
type RawMessage struct {
	ID             string
	ThreadID       string
	LabelIDs       []string
	Snippet        string
	InternalDate   int64 // Unix milliseconds, 0 when unknown
	Headers        []mailheader.Header
	Body           string
	HasAttachments bool
}

// Thread is a provider conversation with its messages in provider order.
type Thread struct {
	ID       string
	Snippet  string
	Messages []RawMessage
}

// ThreadPage is one page of a thread listing. An empty NextPageToken means
// the provider has no further pages.
type ThreadPage struct {
	Threads       []Thread
	NextPageToken string
}

// Provider is the remote mail API, addressed per connected account.
type Provider interface {
	ListThreads(ctx context.Context, account string, opts ListOptions) (*ThreadPage, error)
	GetMessage(ctx context.Context, account, id string) (*RawMessage, error)
	ModifyLabels(ctx context.Context, account, id string, add, remove []string) (*RawMessage, error)
	Send(ctx context.Context, account string, draft *domain.Draft) error
	ListLabels(ctx context.Context, account string) ([]domain.Label, error)
}
