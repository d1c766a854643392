package thread

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/mailheader"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/provider"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func raw(id string, ms int64, labels ...string) provider.RawMessage {
	return provider.RawMessage{
		ID:           id,
		ThreadID:     "t1",
		InternalDate: ms,
		LabelIDs:     labels,
		Headers: []mailheader.Header{
			{Name: "Subject", Value: "subject " + id},
			{Name: "From", Value: "Alice <alice@example.com>"},
		},
	}
}

func ids(msgs []domain.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestAssemble_TwoMessages(t *testing.T) {
	t1 := int64(1_700_000_000_000)
	t2 := t1 + 60_000

	head, ok := Assemble([]provider.RawMessage{raw("m2", t2), raw("m1", t1)}, "a@example.com", clock)
	if !ok {
		t.Fatal("Assemble() returned false")
	}
	if head.ID != "m2" {
		t.Errorf("head.ID = %q, want m2", head.ID)
	}
	if diff := cmp.Diff([]string{"m1"}, ids(head.History)); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	if !head.Date.Equal(time.UnixMilli(t2)) {
		t.Errorf("head.Date = %v, want %v", head.Date, time.UnixMilli(t2))
	}
	if head.AccountEmail != "a@example.com" {
		t.Errorf("AccountEmail = %q", head.AccountEmail)
	}
	if head.History[0].History != nil {
		t.Error("history entries must not carry nested history")
	}
}

func TestAssemble_SingleMessageHasNoHistory(t *testing.T) {
	head, ok := Assemble([]provider.RawMessage{raw("m1", 1000)}, "a@example.com", clock)
	if !ok {
		t.Fatal("Assemble() returned false")
	}
	if len(head.History) != 0 {
		t.Errorf("len(History) = %d, want 0", len(head.History))
	}
}

func TestAssemble_Empty(t *testing.T) {
	if _, ok := Assemble(nil, "a@example.com", clock); ok {
		t.Error("Assemble(nil) returned true")
	}
}

func TestAssemble_HeadIsMaxAndHistoryAscending(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for iter := 0; iter < 50; iter++ {
		n := 1 + r.IntN(8)
		msgs := make([]provider.RawMessage, 0, n)
		var newest int64
		for i := 0; i < n; i++ {
			ms := int64(1_600_000_000_000 + r.IntN(1_000_000)*1000 + i)
			if ms > newest {
				newest = ms
			}
			msgs = append(msgs, raw("m"+strconv.Itoa(i), ms))
		}

		head, ok := Assemble(msgs, "a@example.com", clock)
		if !ok {
			t.Fatalf("iter %d: Assemble() returned false", iter)
		}
		if head.Date.UnixMilli() != newest {
			t.Fatalf("iter %d: head date %d, want max %d", iter, head.Date.UnixMilli(), newest)
		}
		if len(head.History) != n-1 {
			t.Fatalf("iter %d: len(History) = %d, want %d", iter, len(head.History), n-1)
		}
		for i := 1; i < len(head.History); i++ {
			if head.History[i].Date.Before(head.History[i-1].Date) {
				t.Fatalf("iter %d: history not ascending at %d", iter, i)
			}
		}
	}
}

func TestAssemble_TimestampFallbacks(t *testing.T) {
	tests := []struct {
		name string
		msg  provider.RawMessage
		want time.Time
	}{
		{
			name: "internal date wins over header",
			msg: provider.RawMessage{
				ID:           "m1",
				InternalDate: 1_700_000_000_000,
				Headers:      []mailheader.Header{{Name: "Date", Value: "Mon, 02 Jan 2006 15:04:05 +0000"}},
			},
			want: time.UnixMilli(1_700_000_000_000),
		},
		{
			name: "date header",
			msg: provider.RawMessage{
				ID:      "m1",
				Headers: []mailheader.Header{{Name: "Date", Value: "Mon, 2 Jan 2006 15:04:05 +0000 (UTC)"}},
			},
			want: time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC),
		},
		{
			name: "malformed date falls back to now",
			msg: provider.RawMessage{
				ID:      "m1",
				Headers: []mailheader.Header{{Name: "Date", Value: "not a date"}},
			},
			want: fixedNow,
		},
		{
			name: "nothing at all",
			msg:  provider.RawMessage{ID: "m1"},
			want: fixedNow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			head, ok := Assemble([]provider.RawMessage{tt.msg}, "a@example.com", clock)
			if !ok {
				t.Fatal("Assemble() returned false")
			}
			if !head.Date.Equal(tt.want) {
				t.Errorf("Date = %v, want %v", head.Date, tt.want)
			}
		})
	}
}

func TestAssemble_MalformedHeadersNeverPanic(t *testing.T) {
	msgs := []provider.RawMessage{
		{Headers: []mailheader.Header{
			{Name: "From", Value: "<<<"},
			{Name: "To", Value: ",,,@"},
			{Name: "Subject", Value: "=?bogus?Q?x?="},
			{Name: "References", Value: "<<a b>"},
			{Name: "Date", Value: "32 Foo 99999"},
		}},
		{},
	}
	head, ok := Assemble(msgs, "a@example.com", nil)
	if !ok {
		t.Fatal("Assemble() returned false")
	}
	if head.Date.IsZero() {
		t.Error("Date must never be zero")
	}
}

func TestAssemble_SyntheticID(t *testing.T) {
	head, ok := Assemble([]provider.RawMessage{{ThreadID: "t1", InternalDate: 5}}, "a@example.com", clock)
	if !ok {
		t.Fatal("Assemble() returned false")
	}
	if !strings.HasPrefix(head.ID, SyntheticIDPrefix) {
		t.Errorf("ID = %q, want %q prefix", head.ID, SyntheticIDPrefix)
	}

	other, _ := Assemble([]provider.RawMessage{{ThreadID: "t1", InternalDate: 5}}, "a@example.com", clock)
	if other.ID == head.ID {
		t.Error("synthetic ids must be unique")
	}
}

func TestAssemble_ReadState(t *testing.T) {
	head, _ := Assemble([]provider.RawMessage{raw("m1", 1, domain.LabelInbox, domain.LabelUnread)}, "a@example.com", clock)
	if head.IsRead {
		t.Error("IsRead = true for UNREAD message")
	}
	head, _ = Assemble([]provider.RawMessage{raw("m1", 1, domain.LabelInbox)}, "a@example.com", clock)
	if !head.IsRead {
		t.Error("IsRead = false without UNREAD label")
	}
}

func TestBuild_DropsDuplicateIDs(t *testing.T) {
	msgs := []domain.Message{
		{ID: "m1", Subject: "first", Date: time.Unix(10, 0)},
		{ID: "m2", Date: time.Unix(20, 0)},
		{ID: "m1", Subject: "second", Date: time.Unix(30, 0)},
	}
	head, ok := Build(msgs)
	if !ok {
		t.Fatal("Build() returned false")
	}
	if head.ID != "m2" {
		t.Errorf("head.ID = %q, want m2", head.ID)
	}
	if diff := cmp.Diff([]string{"m1"}, ids(head.History)); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	if head.History[0].Subject != "first" {
		t.Errorf("kept %q, want first occurrence", head.History[0].Subject)
	}
}

func TestGroup(t *testing.T) {
	msgs := []domain.Message{
		{ID: "a1", ThreadID: "a", Date: time.Unix(10, 0)},
		{ID: "b1", ThreadID: "b", Date: time.Unix(15, 0)},
		{ID: "a2", ThreadID: "a", Date: time.Unix(30, 0)},
		{ID: "solo", Date: time.Unix(20, 0)},
	}
	heads := Group(msgs)

	if diff := cmp.Diff([]string{"a2", "solo", "b1"}, ids(heads)); diff != "" {
		t.Errorf("heads mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a1"}, ids(heads[0].History)); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}
