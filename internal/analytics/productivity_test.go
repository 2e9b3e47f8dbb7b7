package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func stats(samples ...float64) ResponseStats {
	var s ResponseStats
	for _, v := range samples {
		s.add(v)
	}
	return s
}

func TestScoreAgent(t *testing.T) {
	tests := []struct {
		name string
		in   ScoreInput
		want Score
	}{
		{
			name: "TwoOfThreeResolved",
			in: ScoreInput{
				TotalConversations: 3, ResolvedConversations: 2,
				SentMessages: 10, Satisfaction: 50,
				Response: stats(60, 180, 120),
			},
			want: Score{
				ResolutionRate:    200.0 / 3,
				Satisfaction:      50,
				ResponseTimeScore: 98,
				ActivityScore:     30,
				Productivity:      64,
			},
		},
		{
			name: "Perfect",
			in: ScoreInput{
				TotalConversations: 12, ResolvedConversations: 12,
				Satisfaction: 100, Response: stats(0.5),
			},
			want: Score{
				ResolutionRate: 100, Satisfaction: 100,
				ResponseTimeScore: 100 - 0.5/60,
				ActivityScore:     100, Productivity: 100,
			},
		},
		{
			name: "SlowAndUnresolved",
			in: ScoreInput{
				TotalConversations: 1, Satisfaction: 0,
				Response: stats((3 * time.Hour).Seconds()),
			},
			want: Score{ActivityScore: 10, Productivity: 1},
		},
		{
			name: "NoResponseSample",
			in: ScoreInput{
				TotalConversations: 2, ResolvedConversations: 1,
				Satisfaction: 50,
			},
			want: Score{
				ResolutionRate: 50, Satisfaction: 50,
				ResponseTimeScore: unsampledResponseScore,
				ActivityScore:     20, Productivity: 37,
			},
		},
		{
			name: "SatisfactionClamped",
			in: ScoreInput{
				TotalConversations: 1, Satisfaction: 140,
			},
			want: Score{
				Satisfaction: 100, ActivityScore: 10,
				Productivity: 31,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreAgent(tt.in)
			assert.InDelta(t, tt.want.ResolutionRate, got.ResolutionRate, 1e-9)
			assert.InDelta(t, tt.want.Satisfaction, got.Satisfaction, 1e-9)
			assert.InDelta(t, tt.want.ResponseTimeScore, got.ResponseTimeScore, 1e-9)
			assert.InDelta(t, tt.want.ActivityScore, got.ActivityScore, 1e-9)
			assert.Equal(t, tt.want.Productivity, got.Productivity)
		})
	}
}

func TestScoreAgent_Bounds(t *testing.T) {
	for total := 0; total <= 20; total += 4 {
		for resolved := 0; resolved <= total; resolved++ {
			for _, sat := range []float64{-10, 0, 50, 100, 200} {
				for _, resp := range []float64{0, 30, 600, 1e6} {
					got := ScoreAgent(ScoreInput{
						TotalConversations:    total,
						ResolvedConversations: resolved,
						Satisfaction:          sat,
						Response:              stats(resp),
					}).Productivity
					if got < 0 || got > 100 {
						t.Fatalf("score %d out of range", got)
					}
				}
			}
		}
	}
}

func TestScoreInput_Active(t *testing.T) {
	assert.False(t, ScoreInput{}.Active())
	assert.True(t, ScoreInput{TotalConversations: 1}.Active())
	assert.True(t, ScoreInput{SentMessages: 1}.Active())
}

func TestSummarize_ExcludesInactive(t *testing.T) {
	users := []AgentMetrics{
		{AgentID: "b", Name: "Bia", ProductivityScore: 0},
		{AgentID: "a", Name: "Ana", ProductivityScore: 64, Scored: true},
		{AgentID: "c", Name: "Caio", ProductivityScore: 81, Scored: true},
		{AgentID: "d", Name: "Duda", ProductivityScore: 64, Scored: true},
	}
	got := Summarize(users)

	assert.Equal(t, 3, got.ScoredAgents)
	assert.Equal(t, 1, got.ExcludedAgents)
	assert.Equal(t, 69.67, got.OrganizationScore)
	assert.Equal(t, []AgentScore{
		{AgentID: "c", Name: "Caio", Score: 81},
		{AgentID: "a", Name: "Ana", Score: 64},
		{AgentID: "d", Name: "Duda", Score: 64},
	}, got.Ranking)
}

func TestSummarize_NoneScored(t *testing.T) {
	got := Summarize([]AgentMetrics{{AgentID: "x"}})
	assert.Zero(t, got.OrganizationScore)
	assert.Empty(t, got.Ranking)
	assert.Equal(t, 1, got.ExcludedAgents)
}
