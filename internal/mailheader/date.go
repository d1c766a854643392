package mailheader

import (
	"regexp"
	"strings"
	"time"
)

// dateFormats is tried in order. Variants cover a leading day name or not,
// one or two digit days, optional seconds, and numeric or named zones.
var dateFormats = []string{
	time.RFC1123Z,                    // "Mon, 02 Jan 2006 15:04:05 -0700"
	time.RFC1123,                     // "Mon, 02 Jan 2006 15:04:05 MST"
	"Mon, 2 Jan 2006 15:04:05 -0700", // single-digit day
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04 -0700", // no seconds
	"Mon, 2 Jan 2006 15:04 MST",
	"2 Jan 2006 15:04:05 -0700", // no day name
	"2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04 -0700",
	"2 Jan 2006 15:04 MST",
	time.RFC822Z, // "02 Jan 06 15:04 -0700"
	time.RFC822,
	time.RFC3339,          // "2006-01-02T15:04:05Z07:00"
	"2006-01-02T15:04:05", // ISO 8601 without zone
	"2006-01-02 15:04:05 -0700",
}

// trailingComment matches a parenthesized zone abbreviation such as "(UTC)".
var trailingComment = regexp.MustCompile(`\s*\([^()]*\)\s*$`)

// ParseDate parses a Date header value. The second result is false when no
// format matched.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	s = trailingComment.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return time.Time{}, false
	}

	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
