package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/app"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/domain"
)

func TestFprintJSON(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"nil value", nil, "null\n"},
		{"empty slice", []string{}, "[]\n"},
		{"indented", map[string]int{"a": 1}, "{\n  \"a\": 1\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := fprintJSON(&buf, tt.input); err != nil {
				t.Fatalf("fprintJSON() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFprintJSON_Unencodable(t *testing.T) {
	var buf bytes.Buffer
	err := fprintJSON(&buf, map[string]any{"c": make(chan int)})
	var unsupported *json.UnsupportedTypeError
	if !errors.As(err, &unsupported) {
		t.Errorf("fprintJSON() error = %v, want UnsupportedTypeError", err)
	}
}

func TestWriteHeads(t *testing.T) {
	heads := []domain.Message{
		{
			ID:           "m2",
			AccountEmail: "a@example.com",
			From:         domain.Address{Name: "Alice", Email: "alice@example.com"},
			Subject:      "Quarterly numbers",
			Date:         time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local),
			History:      []domain.Message{{ID: "m1", IsRead: true}},
		},
		{
			ID:           "m9",
			AccountEmail: "b@example.com",
			From:         domain.Address{Email: "bob@example.com"},
			Subject:      strings.Repeat("x", 80),
			IsRead:       true,
		},
	}

	var buf bytes.Buffer
	if err := writeHeads(&buf, heads); err != nil {
		t.Fatalf("writeHeads() error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[1], "*") {
		t.Errorf("unread thread not flagged: %q", lines[1])
	}
	for _, want := range []string{"Alice", "Mar 10, 2025", "a@example.com", "m2"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("row %q missing %q", lines[1], want)
		}
	}
	if strings.HasPrefix(lines[2], "*") {
		t.Errorf("read thread flagged unread: %q", lines[2])
	}
	if !strings.Contains(lines[2], "bob@example.com") || !strings.Contains(lines[2], "...") {
		t.Errorf("row %q should fall back to the sender email and truncate the subject", lines[2])
	}
}

func TestWriteMessage(t *testing.T) {
	var buf bytes.Buffer
	writeMessage(&buf, domain.Message{
		From:         domain.Address{Name: "Alice", Email: "alice@example.com"},
		To:           []domain.Address{{Email: "b@example.com"}, {Name: "C", Email: "c@example.com"}},
		Subject:      "Hi",
		Body:         "hello there",
		AccountEmail: "b@example.com",
	})
	out := buf.String()
	for _, want := range []string{
		"From: Alice <alice@example.com>\n",
		"To: b@example.com, C <c@example.com>\n",
		"Subject: Hi\n",
		"\nhello there\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Cc:") {
		t.Error("output should not contain an empty Cc line")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"ééééééééééé", 5, "éé..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestParseAddrList(t *testing.T) {
	got := parseAddrList(" a@example.com, ,b@example.com ")
	want := []domain.Address{{Email: "a@example.com"}, {Email: "b@example.com"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseAddrList() mismatch (-want +got):\n%s", diff)
	}
	if parseAddrList("") != nil {
		t.Error("parseAddrList(\"\") should be nil")
	}
}

func TestReportRefresh(t *testing.T) {
	var out, errOut bytes.Buffer
	reportRefresh(&out, &errOut, app.RefreshResult{
		Accounts: 2,
		Threads:  5,
		Failed:   true,
		Err:      errors.New("b@example.com: quota exceeded"),
	})
	if got := out.String(); got != "Synced 5 threads across 2 accounts.\n" {
		t.Errorf("stdout = %q", got)
	}
	if !strings.Contains(errOut.String(), app.FailureNotice) || !strings.Contains(errOut.String(), "quota exceeded") {
		t.Errorf("stderr = %q, want notice and error", errOut.String())
	}
}
