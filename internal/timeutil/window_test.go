package timeutil

import (
	"testing"
	"time"
)

var fixedNow = time.Date(2024, 6, 15, 13, 45, 0, 0, time.UTC)

func TestResolveWindow_Explicit(t *testing.T) {
	w := ResolveWindow(WindowInput{
		DateStart: "2024-06-01", DateEnd: "2024-06-03",
	}, FallbackLast30Days, fixedNow)

	wantStart := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 6, 3, 23, 59, 59, 999000000, time.UTC)
	if !w.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", w.Start, wantStart)
	}
	if !w.End.Equal(wantEnd) {
		t.Errorf("End = %v, want %v", w.End, wantEnd)
	}
	if w.Source != "explicit" {
		t.Errorf("Source = %q, want explicit", w.Source)
	}
	if w.Granularity != Daily {
		t.Errorf("Granularity = %q, want day", w.Granularity)
	}
	if got := len(w.Buckets()); got != 3 {
		t.Errorf("buckets = %d, want 3", got)
	}
}

func TestResolveWindow_Granularity(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		want    Granularity
		buckets int
	}{
		{"SingleDay", "2024-06-10", "2024-06-10", Hourly, 24},
		{"TwoDays", "2024-06-10", "2024-06-11", Daily, 2},
		{"SevenDays", "2024-06-01", "2024-06-07", Daily, 7},
		{"EightDays", "2024-06-01", "2024-06-08", Weekly, 2},
		{"ThirtyDays", "2024-05-01", "2024-05-30", Weekly, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ResolveWindow(WindowInput{
				DateStart: tt.from, DateEnd: tt.to,
			}, FallbackLast30Days, fixedNow)
			if w.Granularity != tt.want {
				t.Errorf("Granularity = %q, want %q",
					w.Granularity, tt.want)
			}
			if got := len(w.Buckets()); got != tt.buckets {
				t.Errorf("buckets = %d, want %d", got, tt.buckets)
			}
		})
	}
}

func TestResolveWindow_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		in   WindowInput
		fb   Fallback
		days int
	}{
		{"MissingDashboard", WindowInput{}, FallbackLast24h, 1},
		{"MissingReport", WindowInput{}, FallbackLast30Days, 31},
		{"MalformedStart", WindowInput{DateStart: "06/01/2024", DateEnd: "2024-06-03"}, FallbackLast24h, 1},
		{"OnlyEnd", WindowInput{DateEnd: "2024-06-03"}, FallbackLast30Days, 31},
		{"Inverted", WindowInput{DateStart: "2024-06-05", DateEnd: "2024-06-03"}, FallbackLast24h, 1},
		{"UnknownPeriod", WindowInput{Period: "fortnight"}, FallbackLast24h, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ResolveWindow(tt.in, tt.fb, fixedNow)
			if w.Source != "fallback" {
				t.Errorf("Source = %q, want fallback", w.Source)
			}
			if got := w.DiffInDays(); got != tt.days {
				t.Errorf("DiffInDays = %d, want %d", got, tt.days)
			}
		})
	}
}

func TestResolveWindow_Last24hIsHourly(t *testing.T) {
	w := ResolveWindow(WindowInput{}, FallbackLast24h, fixedNow)
	if w.Granularity != Hourly {
		t.Fatalf("Granularity = %q, want hour", w.Granularity)
	}
	if got := len(w.Buckets()); got != 24 {
		t.Errorf("buckets = %d, want 24", got)
	}
	if !w.Contains(fixedNow.Add(-time.Minute)) {
		t.Error("window should contain a minute ago")
	}
}

func TestResolveWindow_Periods(t *testing.T) {
	tests := []struct {
		period string
		start  string
		end    string
		gran   Granularity
	}{
		{"today", "2024-06-15", "2024-06-15", Hourly},
		{"yesterday", "2024-06-14", "2024-06-14", Hourly},
		{"7d", "2024-06-09", "2024-06-15", Daily},
		{"30d", "2024-05-17", "2024-06-15", Weekly},
		{"current_month", "2024-06-01", "2024-06-15", Weekly},
		{"last_month", "2024-05-01", "2024-05-31", Weekly},
	}
	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			w := ResolveWindow(
				WindowInput{Period: tt.period},
				FallbackLast24h, fixedNow,
			)
			if w.Source != "period" {
				t.Fatalf("Source = %q, want period", w.Source)
			}
			if got := w.Start.Format(dateLayout); got != tt.start {
				t.Errorf("start = %s, want %s", got, tt.start)
			}
			if got := w.End.Format(dateLayout); got != tt.end {
				t.Errorf("end = %s, want %s", got, tt.end)
			}
			if w.Granularity != tt.gran {
				t.Errorf("Granularity = %q, want %q",
					w.Granularity, tt.gran)
			}
		})
	}
}

func TestResolveWindow_ExplicitWinsOverPeriod(t *testing.T) {
	w := ResolveWindow(WindowInput{
		DateStart: "2024-06-01", DateEnd: "2024-06-01",
		Period: "30d",
	}, FallbackLast24h, fixedNow)
	if w.Source != "explicit" {
		t.Errorf("Source = %q, want explicit", w.Source)
	}
}

func TestResolveWindow_GranularityOverride(t *testing.T) {
	w := ResolveWindow(WindowInput{
		DateStart: "2024-06-01", DateEnd: "2024-06-02",
		Granularity: "hourly",
	}, FallbackLast24h, fixedNow)
	if w.Granularity != Hourly {
		t.Fatalf("Granularity = %q, want hour", w.Granularity)
	}
	if got := len(w.Buckets()); got != 48 {
		t.Errorf("buckets = %d, want 48", got)
	}

	w = ResolveWindow(WindowInput{
		DateStart: "2024-06-01", DateEnd: "2024-06-02",
		Granularity: "fortnightly",
	}, FallbackLast24h, fixedNow)
	if w.Granularity != Daily {
		t.Errorf("invalid override: Granularity = %q, want day",
			w.Granularity)
	}
}

func TestWindow_BucketIndex(t *testing.T) {
	w := ResolveWindow(WindowInput{
		DateStart: "2024-06-01", DateEnd: "2024-06-08",
	}, FallbackLast24h, fixedNow)
	buckets := w.Buckets()
	if len(buckets) != 2 {
		t.Fatalf("buckets = %d, want 2", len(buckets))
	}
	if !buckets[1].End.Equal(w.End.Add(time.Millisecond)) {
		t.Errorf("last bucket end = %v, want clipped to window end",
			buckets[1].End)
	}

	tests := []struct {
		at   time.Time
		want int
	}{
		{time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), 0},
		{time.Date(2024, 6, 7, 23, 59, 0, 0, time.UTC), 0},
		{time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC), -1},
		{time.Date(2024, 5, 31, 23, 0, 0, 0, time.UTC), -1},
	}
	for _, tt := range tests {
		if got := w.BucketIndex(tt.at); got != tt.want {
			t.Errorf("BucketIndex(%v) = %d, want %d",
				tt.at, got, tt.want)
		}
	}
}
