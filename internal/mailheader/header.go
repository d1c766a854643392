// Package mailheader turns raw RFC 5322 header fields into the structured
// fields the sync engine stores and threads on.
package mailheader

import (
	netmail "net/mail"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
)

// Header is a single raw header field as delivered by a provider.
type Header struct {
	Name  string
	Value string
}

// Parsed holds the header fields consumed by thread assembly and the
// persistence mappers. Zero values mean the header was missing or unusable.
type Parsed struct {
	From       domain.Address
	To         []domain.Address
	CC         []domain.Address
	BCC        []domain.Address
	Subject    string
	MessageID  string
	References []string
	InReplyTo  string
	Date       time.Time
	HasDate    bool
}

// Find performs a case-insensitive lookup for a header value.
func Find(headers []Header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Parse extracts the structured fields from headers. It never fails:
// malformed values degrade to the raw text or to zero values.
func Parse(headers []Header) Parsed {
	var h mail.Header
	for _, hd := range headers {
		h.Add(hd.Name, hd.Value)
	}

	p := Parsed{
		To:         addressList(&h, "To"),
		CC:         addressList(&h, "Cc"),
		BCC:        addressList(&h, "Bcc"),
		Subject:    subject(&h),
		MessageID:  messageID(&h),
		References: msgIDList(&h, "References"),
	}
	if from := addressList(&h, "From"); len(from) > 0 {
		p.From = from[0]
	}
	if ids := msgIDList(&h, "In-Reply-To"); len(ids) > 0 {
		p.InReplyTo = ids[0]
	}
	p.Date, p.HasDate = ParseDate(h.Get("Date"))
	return p
}

func subject(h *mail.Header) string {
	s, err := h.Subject()
	if err != nil {
		return strings.TrimSpace(h.Get("Subject"))
	}
	return strings.TrimSpace(s)
}

func messageID(h *mail.Header) string {
	id, err := h.MessageID()
	if err != nil || id == "" {
		return trimAngles(h.Get("Message-Id"))
	}
	return id
}

func msgIDList(h *mail.Header, key string) []string {
	ids, err := h.MsgIDList(key)
	if err == nil {
		return ids
	}
	// Fallback: whitespace separated ids, brackets optional.
	var out []string
	for _, f := range strings.Fields(h.Get(key)) {
		if id := trimAngles(f); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func addressList(h *mail.Header, key string) []domain.Address {
	raw := strings.TrimSpace(h.Get(key))
	if raw == "" {
		return nil
	}

	parsed, err := h.AddressList(key)
	if err != nil {
		return fallbackAddressList(raw)
	}
	addrs := make([]domain.Address, 0, len(parsed))
	for _, a := range parsed {
		addrs = append(addrs, domain.Address{Name: a.Name, Email: a.Address})
	}
	return addrs
}

// fallbackAddressList splits by comma and parses each part individually,
// keeping unparseable parts as bare addresses.
func fallbackAddressList(s string) []domain.Address {
	var addrs []domain.Address
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		a, err := netmail.ParseAddress(part)
		if err != nil {
			addrs = append(addrs, domain.Address{Email: trimAngles(part)})
			continue
		}
		addrs = append(addrs, domain.Address{Name: a.Name, Email: a.Address})
	}
	return addrs
}

func trimAngles(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<")
	return strings.TrimSuffix(s, ">")
}
