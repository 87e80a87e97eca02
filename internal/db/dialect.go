package db

import (
	"fmt"
	"strings"
	"time"
)

// Rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
// Question marks inside single-quoted literals are left alone.
func Rebind(query string) string {
	n := 0
	inQuote := false
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteString(fmt.Sprintf("$%d", n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ParseTime converts a scanned timestamp value to time.Time.
// SQLite may hand back a string, []byte or time.Time depending on the column type; Postgres returns time.Time.
func ParseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case []byte:
		return ParseTime(string(t))
	case string:
		if t == "" {
			return time.Time{}
		}
		for _, layout := range []string{
			"2006-01-02 15:04:05",
			time.RFC3339,
			time.RFC3339Nano,
			"2006-01-02 15:04:05-07:00",
			"2006-01-02 15:04:05.999999999-07:00",
			"2006-01-02T15:04:05.999999999-07:00",
		} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

// ParseTimePtr is like ParseTime but returns nil for zero/missing timestamps.
func ParseTimePtr(v any) *time.Time {
	t := ParseTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}
