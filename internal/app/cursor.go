package app

// CursorState describes what is known about the next page of a listing.
type CursorState int

const (
	// CursorAbsent means the listing was never fetched, or its last page
	// fetch failed.
	CursorAbsent CursorState = iota
	// CursorMore means the provider handed out a token for another page.
	CursorMore
	// CursorDone means the provider confirmed there are no more pages.
	CursorDone
)

func (s CursorState) String() string {
	switch s {
	case CursorMore:
		return "more"
	case CursorDone:
		return "done"
	default:
		return "absent"
	}
}

// NearEndThreshold is how close to the end of a list the visible position
// must be before the next page is requested.
const NearEndThreshold = 5

type cursorKey struct {
	account string
	filter  string
}

// Cursors maps (account, filter key) to the provider's next-page token.
// It is not safe for concurrent use; the Coordinator guards it.
type Cursors struct {
	entries map[cursorKey]string
}

// NewCursors returns an empty tracker.
func NewCursors() *Cursors {
	return &Cursors{entries: make(map[cursorKey]string)}
}

// CursorFor returns the stored token and its state.
func (c *Cursors) CursorFor(account, filterKey string) (string, CursorState) {
	token, ok := c.entries[cursorKey{account, filterKey}]
	switch {
	case !ok:
		return "", CursorAbsent
	case token == "":
		return "", CursorDone
	default:
		return token, CursorMore
	}
}

// SetCursor records the token from the latest page. An empty token means
// the listing is exhausted.
func (c *Cursors) SetCursor(account, filterKey, token string) {
	c.entries[cursorKey{account, filterKey}] = token
}

// Clear forgets one listing's cursor, returning it to CursorAbsent.
func (c *Cursors) Clear(account, filterKey string) {
	delete(c.entries, cursorKey{account, filterKey})
}

// Reset forgets every cursor of an account.
func (c *Cursors) Reset(account string) {
	for k := range c.entries {
		if k.account == account {
			delete(c.entries, k)
		}
	}
}

// ResetAll forgets every cursor.
func (c *Cursors) ResetAll() {
	clear(c.entries)
}

// ShouldPaginate reports whether the next page should be fetched for a
// list of n items whose visible position is visibleIndex.
func ShouldPaginate(n, visibleIndex int, inFlight bool, state CursorState) bool {
	if n == 0 || inFlight || state != CursorMore {
		return false
	}
	return visibleIndex >= n-NearEndThreshold
}
