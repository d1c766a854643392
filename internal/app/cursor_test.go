package app

import "testing"

func TestCursors(t *testing.T) {
	c := NewCursors()

	if _, state := c.CursorFor("a@x.com", "label:INBOX"); state != CursorAbsent {
		t.Errorf("fresh state = %v, want absent", state)
	}

	c.SetCursor("a@x.com", "label:INBOX", "tok-2")
	tok, state := c.CursorFor("a@x.com", "label:INBOX")
	if tok != "tok-2" || state != CursorMore {
		t.Errorf("CursorFor() = %q, %v; want tok-2, more", tok, state)
	}

	// another label never sees this cursor
	if _, state := c.CursorFor("a@x.com", AllMailKey); state != CursorAbsent {
		t.Errorf("all-mail state = %v, want absent", state)
	}

	c.SetCursor("a@x.com", "label:INBOX", "")
	if _, state := c.CursorFor("a@x.com", "label:INBOX"); state != CursorDone {
		t.Errorf("state after empty token = %v, want done", state)
	}

	c.Clear("a@x.com", "label:INBOX")
	if _, state := c.CursorFor("a@x.com", "label:INBOX"); state != CursorAbsent {
		t.Errorf("state after Clear = %v, want absent", state)
	}
}

func TestCursors_Reset(t *testing.T) {
	c := NewCursors()
	c.SetCursor("a@x.com", "label:INBOX", "1")
	c.SetCursor("a@x.com", AllMailKey, "2")
	c.SetCursor("b@x.com", AllMailKey, "3")

	c.Reset("a@x.com")
	if _, s := c.CursorFor("a@x.com", "label:INBOX"); s != CursorAbsent {
		t.Errorf("a inbox = %v, want absent", s)
	}
	if _, s := c.CursorFor("a@x.com", AllMailKey); s != CursorAbsent {
		t.Errorf("a all-mail = %v, want absent", s)
	}
	if _, s := c.CursorFor("b@x.com", AllMailKey); s != CursorMore {
		t.Errorf("b all-mail = %v, want more", s)
	}

	c.ResetAll()
	if _, s := c.CursorFor("b@x.com", AllMailKey); s != CursorAbsent {
		t.Errorf("b after ResetAll = %v, want absent", s)
	}
}

func TestShouldPaginate(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		visible  int
		inFlight bool
		state    CursorState
		want     bool
	}{
		{"empty list", 0, 0, false, CursorMore, false},
		{"far from end", 20, 10, false, CursorMore, false},
		{"at threshold", 20, 15, false, CursorMore, true},
		{"last item", 20, 19, false, CursorMore, true},
		{"short list", 3, 0, false, CursorMore, true},
		{"in flight", 20, 19, true, CursorMore, false},
		{"exhausted", 20, 19, false, CursorDone, false},
		{"never fetched", 20, 19, false, CursorAbsent, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldPaginate(tt.n, tt.visible, tt.inFlight, tt.state); got != tt.want {
				t.Errorf("ShouldPaginate(%d, %d, %v, %v) = %v, want %v",
					tt.n, tt.visible, tt.inFlight, tt.state, got, tt.want)
			}
		})
	}
}
