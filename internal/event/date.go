package event

import (
	"strings"
	"time"
)

// isoLayouts are tried in order. Layouts without an offset are read as UTC.
// Fractional seconds are accepted after the seconds field by time.Parse.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseISO parses an ISO-8601 date or date-time. A trailing "Z" is accepted in place of a
// numeric offset. The result is normalized to UTC. Returns false when no layout matches.
func ParseISO(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range isoLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}
