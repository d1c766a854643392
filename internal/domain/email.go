package domain

import "time"

type Address struct {
	Name  string
	Email string
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return a.Name + " <" + a.Email + ">"
}

// Message is the provider-independent display form of one mail message.
// A head message carries the earlier messages of its thread in History,
// oldest first.
type Message struct {
	ID              string
	ThreadID        string
	MessageIDHeader string
	References      []string
	InReplyTo       string
	From            Address
	To              []Address
	CC              []Address
	BCC             []Address
	Subject         string
	Snippet         string
	Body            string
	Date            time.Time
	IsRead          bool
	HasAttachments  bool
	AccountEmail    string
	LabelIDs        []string
	History         []Message
}

func (m *Message) HasLabel(label string) bool {
	for _, l := range m.LabelIDs {
		if l == label {
			return true
		}
	}
	return false
}

// Flatten returns every message of the thread, oldest first, with the
// History of each element stripped.
func (m *Message) Flatten() []Message {
	out := make([]Message, 0, len(m.History)+1)
	for _, h := range m.History {
		h.History = nil
		out = append(out, h)
	}
	head := *m
	head.History = nil
	return append(out, head)
}

// MessageCount reports the number of messages in the thread headed by m.
func (m *Message) MessageCount() int {
	return len(m.History) + 1
}

// Draft is an outgoing message handed to a provider.
type Draft struct {
	From       Address
	To         []Address
	CC         []Address
	BCC        []Address
	Subject    string
	Body       string
	InReplyTo  string
	References []string
	ThreadID   string
}
