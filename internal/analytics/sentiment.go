package analytics

import (
	"strings"

	"github.com/zapdesk/zapmetrics/internal/db"
)

// Sentiment is the polarity of a customer message.
type Sentiment string

const (
	Positive Sentiment = "positive"
	Negative Sentiment = "negative"
	Neutral  Sentiment = "neutral"
)

// neutralSatisfaction is the satisfaction reported when there is
// neither a rating nor a customer message to judge.
const neutralSatisfaction = 50.0

// Classify matches text against the keyword lists. A message
// hitting both lists, or neither, is neutral.
func (l *Lexicon) Classify(text string) Sentiment {
	t := strings.ToLower(text)
	pos := containsAny(t, l.Positive)
	neg := containsAny(t, l.Negative)
	switch {
	case pos && !neg:
		return Positive
	case neg && !pos:
		return Negative
	}
	return Neutral
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// SentimentTally counts classified customer messages.
type SentimentTally struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// Total is the number of classified messages.
func (t SentimentTally) Total() int {
	return t.Positive + t.Negative + t.Neutral
}

func (t *SentimentTally) add(s Sentiment) {
	switch s {
	case Positive:
		t.Positive++
	case Negative:
		t.Negative++
	default:
		t.Neutral++
	}
}

func (t *SentimentTally) merge(o SentimentTally) {
	t.Positive += o.Positive
	t.Negative += o.Negative
	t.Neutral += o.Neutral
}

// Score is the heuristic satisfaction in [0, 100]:
// positiveRatio*100 - negativeRatio*50 + 50.
func (t SentimentTally) Score() float64 {
	n := t.Total()
	if n == 0 {
		return neutralSatisfaction
	}
	pos := float64(t.Positive) / float64(n)
	neg := float64(t.Negative) / float64(n)
	return clamp(pos*100-neg*50+50, 0, 100)
}

// TallyMessages classifies the customer-authored messages; agent
// messages are ignored.
func (l *Lexicon) TallyMessages(msgs []db.Message) SentimentTally {
	var t SentimentTally
	for _, m := range msgs {
		if m.IsFromMe {
			continue
		}
		t.add(l.Classify(m.Content))
	}
	return t
}

// Satisfaction prefers explicit 1-5 ratings (mean rescaled by 20)
// and falls back to the keyword heuristic.
func Satisfaction(ratings []float64, tally SentimentTally) float64 {
	if len(ratings) == 0 {
		return tally.Score()
	}
	var sum float64
	for _, r := range ratings {
		sum += r
	}
	return clamp(sum/float64(len(ratings))*20, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
