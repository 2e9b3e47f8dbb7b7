package analytics

import (
	"math"
	"slices"

	"github.com/zapdesk/zapmetrics/internal/db"
)

// FirstResponse returns the seconds between the first customer
// message and the first agent message. ok is false unless both
// exist and the agent message comes strictly later.
func FirstResponse(msgs []db.Message) (secs float64, ok bool) {
	if !slices.IsSortedFunc(msgs, compareMessages) {
		msgs = slices.Clone(msgs)
		sortMessages(msgs)
	}
	var customer, agent *db.Message
	for i := range msgs {
		m := &msgs[i]
		if m.IsFromMe {
			if agent == nil {
				agent = m
			}
		} else if customer == nil {
			customer = m
		}
		if agent != nil && customer != nil {
			break
		}
	}
	if customer == nil || agent == nil ||
		!agent.CreatedAt.After(customer.CreatedAt) {
		return 0, false
	}
	return agent.CreatedAt.Sub(customer.CreatedAt).Seconds(), true
}

func compareMessages(a, b db.Message) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// ResponseStats summarizes response-time samples. Unsampled
// stats report nil average and best.
type ResponseStats struct {
	Samples int
	sum     float64
	best    float64
}

func (s *ResponseStats) add(secs float64) {
	if s.Samples == 0 || secs < s.best {
		s.best = secs
	}
	s.sum += secs
	s.Samples++
}

// Average returns the mean sample, or false when there are none.
func (s ResponseStats) Average() (float64, bool) {
	if s.Samples == 0 {
		return 0, false
	}
	return s.sum / float64(s.Samples), true
}

// Best returns the fastest sample, or false when there are none.
func (s ResponseStats) Best() (float64, bool) {
	if s.Samples == 0 {
		return 0, false
	}
	return s.best, true
}

// ResponseTimes computes first-response stats per assigned agent
// and for all conversations together. Conversations without a
// sample are skipped rather than counted as zero.
func ResponseTimes(
	convs []Conversation,
) (byAgent map[string]*ResponseStats, overall ResponseStats) {
	byAgent = make(map[string]*ResponseStats)
	for i := range convs {
		secs, ok := FirstResponse(convs[i].messages)
		if !ok {
			continue
		}
		overall.add(secs)
		agent := convs[i].AssignedAgentID
		if agent == "" {
			continue
		}
		s := byAgent[agent]
		if s == nil {
			s = &ResponseStats{}
			byAgent[agent] = s
		}
		s.add(secs)
	}
	return byAgent, overall
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// optRound2 rounds an optional value for output.
func optRound2(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	r := round2(v)
	return &r
}
