package gmail

import (
	"encoding/base64"
	"testing"

	"github.com/google/go-cmp/cmp"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/mailheader"
)

func b64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestMapMessage(t *testing.T) {
	msg := &gmailapi.Message{
		Id:           "m1",
		ThreadId:     "t1",
		LabelIds:     []string{"INBOX", "UNREAD"},
		Snippet:      "hello there",
		InternalDate: 1700000000000,
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/mixed",
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "From", Value: "Alice <alice@example.com>"},
				{Name: "Subject", Value: "Hi"},
			},
			Parts: []*gmailapi.MessagePart{
				{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: b64("plain body")}},
				{MimeType: "application/pdf", Filename: "a.pdf", Body: &gmailapi.MessagePartBody{AttachmentId: "att1"}},
			},
		},
	}

	got := mapMessage(msg)

	if got.ID != "m1" || got.ThreadID != "t1" {
		t.Errorf("ids = %q/%q, want m1/t1", got.ID, got.ThreadID)
	}
	if got.InternalDate != 1700000000000 {
		t.Errorf("InternalDate = %d", got.InternalDate)
	}
	if got.Body != "plain body" {
		t.Errorf("Body = %q, want %q", got.Body, "plain body")
	}
	if !got.HasAttachments {
		t.Error("HasAttachments = false, want true")
	}
	wantHeaders := []mailheader.Header{
		{Name: "From", Value: "Alice <alice@example.com>"},
		{Name: "Subject", Value: "Hi"},
	}
	if diff := cmp.Diff(wantHeaders, got.Headers); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}
}

func TestMapMessage_NilPayload(t *testing.T) {
	got := mapMessage(&gmailapi.Message{Id: "m1"})
	if got.ID != "m1" {
		t.Errorf("ID = %q, want m1", got.ID)
	}
	if len(got.Headers) != 0 || got.Body != "" || got.HasAttachments {
		t.Errorf("expected empty message, got %+v", got)
	}
}

func TestMapThread_SkipsNilMessages(t *testing.T) {
	th := &gmailapi.Thread{
		Id:       "t1",
		Messages: []*gmailapi.Message{{Id: "m1"}, nil, {Id: "m2"}},
	}
	got := mapThread(th)
	if len(got.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(got.Messages))
	}
	if got.Messages[1].ID != "m2" {
		t.Errorf("Messages[1].ID = %q, want m2", got.Messages[1].ID)
	}
}

func TestExtractBody(t *testing.T) {
	tests := []struct {
		name     string
		payload  *gmailapi.MessagePart
		wantText string
		wantHTML string
	}{
		{
			name:    "nil payload",
			payload: nil,
		},
		{
			name: "single plain part",
			payload: &gmailapi.MessagePart{
				MimeType: "text/plain",
				Body:     &gmailapi.MessagePartBody{Data: b64("hello")},
			},
			wantText: "hello",
		},
		{
			name: "alternative",
			payload: &gmailapi.MessagePart{
				MimeType: "multipart/alternative",
				Parts: []*gmailapi.MessagePart{
					{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: b64("text")}},
					{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: b64("<p>html</p>")}},
				},
			},
			wantText: "text",
			wantHTML: "<p>html</p>",
		},
		{
			name: "nested html only",
			payload: &gmailapi.MessagePart{
				MimeType: "multipart/mixed",
				Parts: []*gmailapi.MessagePart{
					{
						MimeType: "multipart/related",
						Parts: []*gmailapi.MessagePart{
							{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: b64("<b>x</b>")}},
						},
					},
				},
			},
			wantHTML: "<b>x</b>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, html := extractBody(tt.payload)
			if text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
			if html != tt.wantHTML {
				t.Errorf("html = %q, want %q", html, tt.wantHTML)
			}
		})
	}
}

func TestDecodeBase64URL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"unpadded", base64.RawURLEncoding.EncodeToString([]byte("ab")), "ab"},
		{"padded", base64.URLEncoding.EncodeToString([]byte("ab")), "ab"},
		{"garbage", "!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeBase64URL(tt.input); got != tt.want {
				t.Errorf("decodeBase64URL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
