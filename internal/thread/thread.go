// Package thread reconstructs provider conversations into a single head
// message carrying its earlier messages as history.
package thread

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/mailheader"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/provider"
)

// SyntheticIDPrefix marks ids generated for messages the provider sent
// without one. Such messages never match a stored row.
const SyntheticIDPrefix = "local-"

// FromRaw maps one provider message into its display form. The timestamp
// is the provider's internal date, else the Date header, else now.
func FromRaw(raw provider.RawMessage, accountEmail string, now func() time.Time) domain.Message {
	h := mailheader.Parse(raw.Headers)

	id := raw.ID
	if id == "" {
		id = SyntheticIDPrefix + uuid.NewString()
	}

	var date time.Time
	switch {
	case raw.InternalDate > 0:
		date = time.UnixMilli(raw.InternalDate).UTC()
	case h.HasDate:
		date = h.Date
	default:
		if now == nil {
			now = time.Now
		}
		date = now()
	}

	labels := slices.Clone(raw.LabelIDs)
	return domain.Message{
		ID:              id,
		ThreadID:        raw.ThreadID,
		MessageIDHeader: h.MessageID,
		References:      h.References,
		InReplyTo:       h.InReplyTo,
		From:            h.From,
		To:              h.To,
		CC:              h.CC,
		BCC:             h.BCC,
		Subject:         h.Subject,
		Snippet:         raw.Snippet,
		Body:            raw.Body,
		Date:            date,
		IsRead:          !slices.Contains(labels, domain.LabelUnread),
		HasAttachments:  raw.HasAttachments,
		AccountEmail:    accountEmail,
		LabelIDs:        labels,
	}
}

// Assemble maps the messages of one conversation and links them into a
// head message. It reports false when there is nothing to assemble.
func Assemble(msgs []provider.RawMessage, accountEmail string, now func() time.Time) (domain.Message, bool) {
	mapped := make([]domain.Message, 0, len(msgs))
	for _, raw := range msgs {
		mapped = append(mapped, FromRaw(raw, accountEmail, now))
	}
	return Build(mapped)
}

// Build links already mapped messages of one conversation. The newest
// message becomes the head; the rest become its history, oldest first.
// Duplicate ids keep their first occurrence. Ties on date keep input order.
func Build(msgs []domain.Message) (domain.Message, bool) {
	seen := make(map[string]bool, len(msgs))
	ordered := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		m.History = nil
		ordered = append(ordered, m)
	}
	if len(ordered) == 0 {
		return domain.Message{}, false
	}

	slices.SortStableFunc(ordered, func(a, b domain.Message) int {
		return a.Date.Compare(b.Date)
	})

	head := ordered[len(ordered)-1]
	if len(ordered) > 1 {
		head.History = ordered[:len(ordered)-1]
	}
	return head, true
}

// Group partitions flattened messages by thread id and builds one head
// per thread, newest thread first. Messages without a thread id stand
// alone.
func Group(msgs []domain.Message) []domain.Message {
	var order []string
	byThread := make(map[string][]domain.Message)
	for _, m := range msgs {
		key := m.ThreadID
		if key == "" {
			key = "id:" + m.ID
		}
		if _, ok := byThread[key]; !ok {
			order = append(order, key)
		}
		byThread[key] = append(byThread[key], m)
	}

	heads := make([]domain.Message, 0, len(order))
	for _, key := range order {
		if head, ok := Build(byThread[key]); ok {
			heads = append(heads, head)
		}
	}
	SortNewestFirst(heads)
	return heads
}

// SortNewestFirst orders head messages by descending date.
func SortNewestFirst(heads []domain.Message) {
	slices.SortStableFunc(heads, func(a, b domain.Message) int {
		return b.Date.Compare(a.Date)
	})
}
