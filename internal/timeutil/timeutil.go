// Package timeutil holds timestamp helpers shared by the store and
// the analytics engine, and resolves reporting windows.
package timeutil

import "time"

// Format returns t as RFC3339Nano in UTC, or "" for the zero time.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Parse reads a stored timestamp. Accepts RFC3339 with or without
// fractional seconds and the space-separated form SQLite's
// datetime() produces.
func Parse(ts string) (time.Time, bool) {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
