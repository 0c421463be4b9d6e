package store

import (
	"fmt"
	"time"
)

// timeLayout is RFC3339 with a fixed nine-digit fraction. Subsecond
// precision matters for the analysis dirty check, and the fixed width
// keeps SQL string comparisons consistent with time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime serializes a timestamp in UTC at nanosecond precision.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts RFC3339 first, then the SQLite default
// "YYYY-MM-DD HH:MM:SS" layout that CURRENT_TIMESTAMP columns produce.
// Anything else is an invalid timestamp.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// parseOptionalTime parses a nullable timestamp column.
func parseOptionalTime(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// formatOptionalTime serializes a nullable timestamp.
func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
