package domain

import (
	"fmt"
	"time"
)

const (
	// TimestampLayout is the persisted form of every timestamp. It is fixed
	// width in UTC so string order matches chronological order.
	TimestampLayout = "2006-01-02T15:04:05.000000Z"

	// DateLayout is the persisted form of a civil date.
	DateLayout = "2006-01-02"
)

// FormatTimestamp renders t in the persisted timestamp layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a persisted timestamp. Offsets other than Z are
// accepted for documents written by older clients.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// CivilDay truncates t to midnight of its UTC calendar day.
func CivilDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders the UTC calendar date of t.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD civil date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
