// Package analytics turns scoped message, chat and profile rows
// into conversation records, response-time statistics, sentiment,
// productivity scores and trend series.
package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zapdesk/zapmetrics/internal/db"
)

// Conversation is one chat as observed in the window.
// TotalMessages always equals SentMessages + ReceivedMessages.
type Conversation struct {
	ChatID           string    `json:"chat_id"`
	Name             string    `json:"name"`
	Platform         string    `json:"platform"`
	Status           string    `json:"status"`
	Priority         string    `json:"priority"`
	Department       string    `json:"department"`
	AssignedAgentID  string    `json:"assigned_agent_id"`
	CreatedAt        time.Time `json:"created_at"`
	LastMessageAt    time.Time `json:"last_message_at"`
	TotalMessages    int       `json:"total_messages"`
	SentMessages     int       `json:"sent_messages"`
	ReceivedMessages int       `json:"received_messages"`
	Resolved         bool      `json:"resolved"`

	ratings  []float64
	messages []db.Message
}

// Finished reports whether the chat's status closes it.
func (c *Conversation) Finished() bool {
	return isFinishedStatus(c.Status)
}

// Messages returns the conversation's messages in chronological
// order.
func (c *Conversation) Messages() []db.Message { return c.messages }

func isFinishedStatus(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "finished", "closed":
		return true
	}
	return false
}

func (c *Conversation) add(m db.Message) {
	c.TotalMessages++
	if m.IsFromMe {
		c.SentMessages++
	} else {
		c.ReceivedMessages++
	}
	if m.CreatedAt.After(c.LastMessageAt) {
		c.LastMessageAt = m.CreatedAt
	}
	c.messages = append(c.messages, m)
}

// Aggregate folds messages into one Conversation per chat id.
// chats supplies metadata; a chat missing from it still yields a
// conversation carrying only its id. Messages without a chat id
// are dropped. The result is sorted by chat id and does not
// depend on input order.
func Aggregate(
	msgs []db.Message, chats map[string]db.Chat,
	log logrus.FieldLogger,
) []Conversation {
	byID := make(map[string]*Conversation)
	dropped := 0
	for _, m := range msgs {
		if m.ChatID == "" {
			dropped++
			continue
		}
		c, ok := byID[m.ChatID]
		if !ok {
			c = newConversation(m.ChatID, chats[m.ChatID])
			byID[m.ChatID] = c
		}
		c.add(m)
	}
	if dropped > 0 && log != nil {
		log.WithField("messages", dropped).
			Warn("dropping messages without chat id")
	}

	out := make([]Conversation, 0, len(byID))
	for _, c := range byID {
		sortMessages(c.messages)
		if c.CreatedAt.IsZero() && len(c.messages) > 0 {
			c.CreatedAt = c.messages[0].CreatedAt
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ChatID < out[j].ChatID
	})
	return out
}

func newConversation(id string, chat db.Chat) *Conversation {
	c := &Conversation{
		ChatID:          id,
		Name:            chat.Name,
		Platform:        chat.Platform,
		Status:          chat.Status,
		Priority:        chat.Priority,
		Department:      chat.Department,
		AssignedAgentID: chat.AssignedAgentID,
		CreatedAt:       chat.CreatedAt,
		LastMessageAt:   chat.LastMessageAt,
		ratings:         chat.Ratings,
	}
	c.Resolved = chat.Resolved || isFinishedStatus(chat.Status)
	return c
}

// sortMessages orders messages by time, breaking ties by id.
func sortMessages(msgs []db.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i], msgs[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
