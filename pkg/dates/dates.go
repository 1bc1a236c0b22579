// Package dates formats the ISO date strings returned by the legislation API.
package dates

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vjeantet/jodaTime"
)

const (
	// InvalidDate is returned by Format for unparseable input.
	InvalidDate = "Invalid date"
	// Unknown is returned by TimeAgo for unparseable input.
	Unknown = "Unknown"
)

// inputLayouts are tried in order. The API sends naive datetimes as well as
// plain dates.
var inputLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse parses an API date string. Values without a zone are read as UTC.
func Parse(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Format renders raw with a date-fns style pattern such as "MMM dd, yyyy",
// or returns InvalidDate. The letters shared with Joda patterns (y M d E H h
// m s a) mean the same in both, so the pattern is handed to jodaTime as is.
func Format(raw, pattern string) string {
	t, ok := Parse(raw)
	if !ok {
		return InvalidDate
	}
	return jodaTime.Format(pattern, t)
}

// TimeAgo describes raw relative to now, e.g. "3 days ago", or Unknown.
func TimeAgo(raw string, now time.Time) string {
	t, ok := Parse(raw)
	if !ok {
		return Unknown
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
