package analytics

import (
	"sort"
	"time"

	"github.com/zapdesk/zapmetrics/internal/db"
	"github.com/zapdesk/zapmetrics/internal/timeutil"
)

// TrendPoint is one bucket of the trend series.
type TrendPoint struct {
	PeriodLabel      string    `json:"period_label"`
	Start            time.Time `json:"start"`
	Messages         int       `json:"messages"`
	SentMessages     int       `json:"sent_messages"`
	ReceivedMessages int       `json:"received_messages"`
	ActiveUsers      int       `json:"active_users"`
	// AvgResponseTime is in seconds; nil when no conversation in
	// the bucket had a first response.
	AvgResponseTime *float64 `json:"avg_response_time"`
}

// HeatmapCell is one cell of the 7x24 day-of-week grid.
type HeatmapCell struct {
	DayOfWeek int `json:"day_of_week"` // 0=Sun, 6=Sat
	Hour      int `json:"hour"`        // 0-23
	Value     int `json:"value"`
}

// BuildHeatmap counts messages by local day-of-week and hour. It
// always returns all 168 cells, Sunday 00h first.
func BuildHeatmap(
	msgs []db.Message, loc *time.Location,
) []HeatmapCell {
	if loc == nil {
		loc = time.UTC
	}
	var grid [7][24]int
	for _, m := range msgs {
		t := m.CreatedAt.In(loc)
		grid[int(t.Weekday())][t.Hour()]++
	}

	cells := make([]HeatmapCell, 0, 168)
	for d := range 7 {
		for h := range 24 {
			cells = append(cells, HeatmapCell{
				DayOfWeek: d,
				Hour:      h,
				Value:     grid[d][h],
			})
		}
	}
	return cells
}

type trendAcc struct {
	point   TrendPoint
	senders map[string]struct{}
	byChat  map[string][]db.Message
}

// BuildTrends buckets msgs by the window's granularity. Every
// bucket is present, zero-filled when empty. Response times are
// computed from the messages inside each bucket only.
func BuildTrends(w timeutil.Window, msgs []db.Message) []TrendPoint {
	buckets := w.Buckets()
	accs := make([]trendAcc, len(buckets))
	for i, b := range buckets {
		accs[i] = trendAcc{
			point: TrendPoint{
				PeriodLabel: b.Label, Start: b.Start,
			},
			senders: make(map[string]struct{}),
			byChat:  make(map[string][]db.Message),
		}
	}

	for _, m := range msgs {
		idx := w.BucketIndex(m.CreatedAt)
		if idx < 0 || idx >= len(accs) {
			continue
		}
		a := &accs[idx]
		a.point.Messages++
		if m.IsFromMe {
			a.point.SentMessages++
		} else {
			a.point.ReceivedMessages++
		}
		if key := activeUserKey(m); key != "" {
			a.senders[key] = struct{}{}
		}
		if m.ChatID != "" {
			a.byChat[m.ChatID] = append(a.byChat[m.ChatID], m)
		}
	}

	out := make([]TrendPoint, len(accs))
	for i := range accs {
		a := &accs[i]
		a.point.ActiveUsers = len(a.senders)
		chatIDs := make([]string, 0, len(a.byChat))
		for id := range a.byChat {
			chatIDs = append(chatIDs, id)
		}
		// Fixed order keeps the float sum stable across runs.
		sort.Strings(chatIDs)
		var rs ResponseStats
		for _, id := range chatIDs {
			if secs, ok := FirstResponse(a.byChat[id]); ok {
				rs.add(secs)
			}
		}
		a.point.AvgResponseTime = optRound2(rs.Average())
		out[i] = a.point
	}
	return out
}

// activeUserKey identifies who sent a message: the sender name,
// or the chat for unnamed customers.
func activeUserKey(m db.Message) string {
	if m.SenderName != "" {
		return "sender:" + m.SenderName
	}
	if m.ChatID != "" && !m.IsFromMe {
		return "chat:" + m.ChatID
	}
	return ""
}
