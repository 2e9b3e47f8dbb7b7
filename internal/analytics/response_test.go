package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/zapmetrics/internal/db"
)

func TestFirstResponse(t *testing.T) {
	tests := []struct {
		name   string
		msgs   []db.Message
		want   float64
		wantOK bool
	}{
		{
			name: "CustomerThenAgent",
			msgs: []db.Message{
				msg(1, "c", "c", 0, ""),
				msg(2, "c", "c", time.Minute, ""),
				msg(3, "c", "a", 90*time.Second, ""),
				msg(4, "c", "a", 10*time.Minute, ""),
			},
			want: 90, wantOK: true,
		},
		{
			name: "Unsorted",
			msgs: []db.Message{
				msg(3, "c", "a", 2*time.Minute, ""),
				msg(1, "c", "c", 0, ""),
			},
			want: 120, wantOK: true,
		},
		{
			name: "CustomerOnly",
			msgs: []db.Message{
				msg(1, "c", "c", 0, ""),
				msg(2, "c", "c", time.Minute, ""),
			},
		},
		{
			name: "AgentOnly",
			msgs: []db.Message{msg(1, "c", "a", 0, "")},
		},
		{
			name: "AgentFirst",
			msgs: []db.Message{
				msg(1, "c", "a", 0, ""),
				msg(2, "c", "c", time.Minute, ""),
				msg(3, "c", "a", 2*time.Minute, ""),
			},
		},
		{
			name: "SameInstant",
			msgs: []db.Message{
				msg(1, "c", "c", 0, ""),
				msg(2, "c", "a", 0, ""),
			},
		},
		{name: "Empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FirstResponse(tt.msgs)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResponseTimes_ExcludesUnanswered(t *testing.T) {
	msgs := []db.Message{
		msg(1, "c1", "c", 0, ""),
		msg(2, "c1", "a", time.Minute, ""),
		msg(3, "c2", "c", 0, ""),
		msg(4, "c2", "a", 3*time.Minute, ""),
		// Never answered: must not pull the average to zero.
		msg(5, "c3", "c", 0, ""),
		msg(6, "c3", "c", time.Minute, ""),
	}
	chats := map[string]db.Chat{
		"c1": {ID: "c1", AssignedAgentID: "a"},
		"c2": {ID: "c2", AssignedAgentID: "a"},
		"c3": {ID: "c3", AssignedAgentID: "a"},
	}
	convs := Aggregate(msgs, chats, nil)

	byAgent, overall := ResponseTimes(convs)
	require.Contains(t, byAgent, "a")
	s := byAgent["a"]
	assert.Equal(t, 2, s.Samples)
	avg, ok := s.Average()
	require.True(t, ok)
	assert.Equal(t, 120.0, avg)
	best, ok := s.Best()
	require.True(t, ok)
	assert.Equal(t, 60.0, best)
	assert.Equal(t, 2, overall.Samples)
}

func TestResponseTimes_NoSamples(t *testing.T) {
	convs := Aggregate([]db.Message{
		msg(1, "c1", "c", 0, ""),
	}, map[string]db.Chat{"c1": {ID: "c1", AssignedAgentID: "a"}}, nil)

	byAgent, overall := ResponseTimes(convs)
	assert.NotContains(t, byAgent, "a")
	_, ok := overall.Average()
	assert.False(t, ok)
	assert.Nil(t, optRound2(overall.Average()))
}

func TestResponseTimes_Deterministic(t *testing.T) {
	var msgs []db.Message
	chats := map[string]db.Chat{}
	for i := range 40 {
		chat := string(rune('a' + i%7))
		chats[chat] = db.Chat{ID: chat, AssignedAgentID: "agent"}
		from := "c"
		if i%3 == 0 {
			from = "a"
		}
		msgs = append(msgs, msg(int64(i), chat, from,
			time.Duration(i*37%50)*time.Second, ""))
	}
	convs := Aggregate(msgs, chats, nil)

	first, _ := ResponseTimes(convs)
	second, _ := ResponseTimes(convs)
	assert.Equal(t, *first["agent"], *second["agent"])
}
