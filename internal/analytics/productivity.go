package analytics

import (
	"math"
	"sort"
)

// Productivity weights. These are fixed; changing them changes
// every historical score.
const (
	weightResolution   = 0.4
	weightSatisfaction = 0.3
	weightResponseTime = 0.2
	weightActivity     = 0.1
)

// unsampledResponseScore is the response-time score of an agent
// with no first-response sample in the window.
const unsampledResponseScore = 0.0

// ScoreInput is what the scorer needs to know about one agent.
type ScoreInput struct {
	TotalConversations    int
	ResolvedConversations int
	SentMessages          int
	Satisfaction          float64
	Response              ResponseStats
}

// Active reports whether the agent passes the activity gate.
// Inactive agents are left out of scoring entirely.
func (in ScoreInput) Active() bool {
	return in.TotalConversations > 0 || in.SentMessages > 0
}

// Score is the breakdown of one agent's productivity.
type Score struct {
	ResolutionRate    float64 `json:"resolution_rate"`
	Satisfaction      float64 `json:"customer_satisfaction"`
	ResponseTimeScore float64 `json:"response_time_score"`
	ActivityScore     float64 `json:"activity_score"`
	Productivity      int     `json:"productivity_score"`
}

// ResolutionRate is resolved/total*100, or 0 without
// conversations.
func ResolutionRate(resolved, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(resolved) / float64(total) * 100
}

// ResponseTimeScore maps an average response time to
// max(0, 100 - minutes).
func ResponseTimeScore(s ResponseStats) float64 {
	avg, ok := s.Average()
	if !ok {
		return unsampledResponseScore
	}
	return max(0, 100-avg/60)
}

// ActivityScore is min(100, conversations*10).
func ActivityScore(conversations int) float64 {
	return min(100, float64(conversations)*10)
}

// ScoreAgent computes the weighted productivity score. The
// result's Productivity is always within [0, 100].
func ScoreAgent(in ScoreInput) Score {
	s := Score{
		ResolutionRate: ResolutionRate(
			in.ResolvedConversations, in.TotalConversations,
		),
		Satisfaction:      clamp(in.Satisfaction, 0, 100),
		ResponseTimeScore: ResponseTimeScore(in.Response),
		ActivityScore:     ActivityScore(in.TotalConversations),
	}
	raw := s.ResolutionRate*weightResolution +
		s.Satisfaction*weightSatisfaction +
		s.ResponseTimeScore*weightResponseTime +
		s.ActivityScore*weightActivity
	s.Productivity = int(clamp(math.Round(raw), 0, 100))
	return s
}

// AgentScore is one entry of the productivity ranking.
type AgentScore struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
	Score   int    `json:"productivity_score"`
}

// ProductivitySummary is the organization-level view.
type ProductivitySummary struct {
	// OrganizationScore is the mean of scored agents, 0 when
	// none passed the activity gate.
	OrganizationScore float64      `json:"organization_score"`
	ScoredAgents      int          `json:"scored_agents"`
	ExcludedAgents    int          `json:"excluded_agents"`
	Ranking           []AgentScore `json:"ranking"`
}

// Summarize ranks scored agents, best first, and averages their
// scores. Agents with Scored false count only as excluded.
func Summarize(users []AgentMetrics) ProductivitySummary {
	sum := ProductivitySummary{Ranking: []AgentScore{}}
	total := 0
	for _, u := range users {
		if !u.Scored {
			sum.ExcludedAgents++
			continue
		}
		sum.ScoredAgents++
		total += u.ProductivityScore
		sum.Ranking = append(sum.Ranking, AgentScore{
			AgentID: u.AgentID, Name: u.Name,
			Score: u.ProductivityScore,
		})
	}
	if sum.ScoredAgents > 0 {
		sum.OrganizationScore = round2(
			float64(total) / float64(sum.ScoredAgents),
		)
	}
	sort.SliceStable(sum.Ranking, func(i, j int) bool {
		a, b := sum.Ranking[i], sum.Ranking[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.AgentID < b.AgentID
	})
	return sum
}
