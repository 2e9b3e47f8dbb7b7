package timeutil

import (
	"math"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Granularity is the size of one trend bucket.
type Granularity string

const (
	Hourly Granularity = "hour"
	Daily  Granularity = "day"
	Weekly Granularity = "week"
)

// Size returns the bucket duration.
func (g Granularity) Size() time.Duration {
	switch g {
	case Hourly:
		return time.Hour
	case Weekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// ParseGranularity accepts hour/day/week and the -ly forms.
func ParseGranularity(s string) (Granularity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hour", "hourly":
		return Hourly, true
	case "day", "daily":
		return Daily, true
	case "week", "weekly":
		return Weekly, true
	}
	return "", false
}

// Fallback selects the default window used when the caller's
// bounds cannot be used.
type Fallback int

const (
	// FallbackLast24h is the dashboard default.
	FallbackLast24h Fallback = iota
	// FallbackLast30Days is the report default.
	FallbackLast30Days
)

// WindowInput is the raw, user-supplied window description.
type WindowInput struct {
	DateStart   string // YYYY-MM-DD
	DateEnd     string // YYYY-MM-DD
	Period      string // today, 7d, current_month, ...
	Granularity string // optional override
}

// Window is an inclusive UTC time range with its bucket size.
type Window struct {
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"` // inclusive, .999
	Granularity Granularity `json:"granularity"`
	Source      string      `json:"source"` // explicit, period, fallback
}

// Bucket is one [Start, End) slice of a window.
type Bucket struct {
	Start time.Time
	End   time.Time
	Label string
}

// ResolveWindow normalizes in into a Window. It never fails:
// unusable bounds fall through to the period tag, then to fb.
func ResolveWindow(
	in WindowInput, fb Fallback, now time.Time,
) Window {
	now = now.UTC()
	var w Window
	if start, end, ok := explicitRange(in.DateStart, in.DateEnd); ok {
		w = Window{Start: start, End: end, Source: "explicit"}
	} else if start, end, ok := periodRange(in.Period, now); ok {
		w = Window{Start: start, End: end, Source: "period"}
	} else {
		start, end := fallbackRange(fb, now)
		w = Window{Start: start, End: end, Source: "fallback"}
	}

	if g, ok := ParseGranularity(in.Granularity); ok {
		w.Granularity = g
	} else {
		w.Granularity = granularityFor(w.DiffInDays())
	}
	return w
}

// DiffInDays is the window length in days, rounded up.
func (w Window) DiffInDays() int {
	d := w.End.Add(time.Millisecond).Sub(w.Start)
	return int(math.Ceil(d.Hours() / 24))
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Buckets splits the window into consecutive buckets of the
// window's granularity. The last bucket is clipped at the window
// end.
func (w Window) Buckets() []Bucket {
	size := w.Granularity.Size()
	limit := w.End.Add(time.Millisecond)
	var out []Bucket
	for s := w.Start; s.Before(limit); s = s.Add(size) {
		e := s.Add(size)
		if e.After(limit) {
			e = limit
		}
		out = append(out, Bucket{
			Start: s, End: e, Label: w.label(s),
		})
	}
	return out
}

// BucketIndex returns the index into Buckets() for t, or -1.
func (w Window) BucketIndex(t time.Time) int {
	if !w.Contains(t) {
		return -1
	}
	return int(t.Sub(w.Start) / w.Granularity.Size())
}

func (w Window) label(t time.Time) string {
	if w.Granularity == Hourly {
		return t.Format("2006-01-02 15:00")
	}
	return t.Format(dateLayout)
}

func granularityFor(days int) Granularity {
	switch {
	case days <= 1:
		return Hourly
	case days <= 7:
		return Daily
	default:
		return Weekly
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).Add(24*time.Hour - time.Millisecond)
}

func explicitRange(from, to string) (time.Time, time.Time, bool) {
	if from == "" || to == "" {
		return time.Time{}, time.Time{}, false
	}
	s, err := time.Parse(dateLayout, strings.TrimSpace(from))
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	e, err := time.Parse(dateLayout, strings.TrimSpace(to))
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	if e.Before(s) {
		return time.Time{}, time.Time{}, false
	}
	return startOfDay(s), endOfDay(e), true
}

func lastDays(now time.Time, n int) (time.Time, time.Time) {
	return startOfDay(now.AddDate(0, 0, -(n - 1))), endOfDay(now)
}

func periodRange(p string, now time.Time) (time.Time, time.Time, bool) {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "today":
		return startOfDay(now), endOfDay(now), true
	case "yesterday":
		y := now.AddDate(0, 0, -1)
		return startOfDay(y), endOfDay(y), true
	case "24h":
		return now.Add(-24 * time.Hour), now.Add(-time.Millisecond), true
	case "7d":
		s, e := lastDays(now, 7)
		return s, e, true
	case "30d":
		s, e := lastDays(now, 30)
		return s, e, true
	case "90d":
		s, e := lastDays(now, 90)
		return s, e, true
	case "current_month":
		first := time.Date(
			now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC,
		)
		return first, endOfDay(now), true
	case "last_month":
		first := time.Date(
			now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC,
		)
		prev := first.AddDate(0, -1, 0)
		return prev, first.Add(-time.Millisecond), true
	}
	return time.Time{}, time.Time{}, false
}

func fallbackRange(fb Fallback, now time.Time) (time.Time, time.Time) {
	if fb == FallbackLast30Days {
		return startOfDay(now.AddDate(0, 0, -30)), endOfDay(now)
	}
	return now.Add(-24 * time.Hour), now.Add(-time.Millisecond)
}
