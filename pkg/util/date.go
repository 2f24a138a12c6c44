package util

import (
	"strings"
	"time"
)

var dayLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
}

// ParseDay parses a calendar date in any of the accepted log layouts and
// truncates it to midnight UTC.
func ParseDay(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TruncateDay(t), true
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return TruncateDay(t), true
	}
	return time.Time{}, false
}

// TruncateDay drops the time of day, keeping the wall-clock date, in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
