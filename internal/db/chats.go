package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/zapdesk/zapmetrics/internal/timeutil"
)

const selectChatCols = `id, organization_id, name, platform,
	status, priority, department, assigned_agent_id,
	created_at, last_message_at, analytics`

// Chat is a row in the chats table. Resolved and Ratings are
// read from the analytics JSON document.
type Chat struct {
	ID              string    `json:"id"`
	OrganizationID  string    `json:"organization_id"`
	Name            string    `json:"name"`
	Platform        string    `json:"platform"`
	Status          string    `json:"status"`
	Priority        string    `json:"priority"`
	Department      string    `json:"department"`
	AssignedAgentID string    `json:"assigned_agent_id"`
	CreatedAt       time.Time `json:"created_at"`
	LastMessageAt   time.Time `json:"last_message_at"`
	Analytics       string    `json:"-"`

	Resolved bool      `json:"resolved"`
	Ratings  []float64 `json:"ratings,omitempty"`
}

// ChatAnalytics builds the analytics document for a chat.
func ChatAnalytics(resolved bool, ratings ...float64) string {
	doc := map[string]any{"resolved": resolved}
	if len(ratings) > 0 {
		doc["ratings"] = ratings
	}
	b, _ := json.Marshal(doc)
	return string(b)
}

// parseChatAnalytics extracts the resolution flag and 1-5
// satisfaction ratings. Out-of-range ratings are ignored.
func parseChatAnalytics(raw string) (bool, []float64) {
	if raw == "" || !gjson.Valid(raw) {
		return false, nil
	}
	resolved := gjson.Get(raw, "resolved").Bool() ||
		gjson.Get(raw, "resolution.resolved").Bool()

	var ratings []float64
	gjson.Get(raw, "ratings").ForEach(
		func(_, v gjson.Result) bool {
			if r := v.Float(); r >= 1 && r <= 5 {
				ratings = append(ratings, r)
			}
			return true
		})
	return resolved, ratings
}

func scanChat(rows *sql.Rows) (Chat, error) {
	var c Chat
	var agent, lastMsg sql.NullString
	var created string
	if err := rows.Scan(
		&c.ID, &c.OrganizationID, &c.Name, &c.Platform,
		&c.Status, &c.Priority, &c.Department, &agent,
		&created, &lastMsg, &c.Analytics,
	); err != nil {
		return Chat{}, fmt.Errorf("scanning chat: %w", err)
	}
	c.AssignedAgentID = agent.String
	if t, ok := timeutil.Parse(created); ok {
		c.CreatedAt = t
	}
	if t, ok := timeutil.Parse(lastMsg.String); ok {
		c.LastMessageAt = t
	}
	c.Resolved, c.Ratings = parseChatAnalytics(c.Analytics)
	return c, nil
}

// ChatQuery selects chats of one organization.
type ChatQuery struct {
	OrgID string
	// CreatedBefore drops chats created after this instant when
	// non-zero.
	CreatedBefore time.Time
	Restricted    bool
	IDs           []string
}

// ListChats returns the organization's chats, paging past the
// fetch cap and chunking the allow-list.
func (db *DB) ListChats(
	ctx context.Context, q ChatQuery,
) ([]Chat, error) {
	if q.Restricted && len(q.IDs) == 0 {
		return nil, nil
	}

	run := func(chunk []string) ([]Chat, error) {
		where := "organization_id = ?"
		args := []any{q.OrgID}
		if !q.CreatedBefore.IsZero() {
			where += " AND created_at <= ?"
			args = append(args, formatTS(q.CreatedBefore))
		}
		if chunk != nil {
			ph, chunkArgs := inPlaceholders(chunk)
			where += " AND id IN " + ph
			args = append(args, chunkArgs...)
		}
		return pageAll(ctx, db, "chats",
			"SELECT "+selectChatCols+
				" FROM chats WHERE "+where+" ORDER BY id",
			args, scanChat)
	}

	if !q.Restricted {
		return run(nil)
	}
	var out []Chat
	err := queryChunked(q.IDs, func(chunk []string) error {
		part, err := run(chunk)
		out = append(out, part...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AssignedChatIDs returns ids of chats assigned to the agent.
func (db *DB) AssignedChatIDs(
	ctx context.Context, orgID, agentID string,
) ([]string, error) {
	return pageAll(ctx, db, "chats",
		`SELECT id FROM chats
		WHERE organization_id = ? AND assigned_agent_id = ?
		ORDER BY id`,
		[]any{orgID, agentID},
		func(rows *sql.Rows) (string, error) {
			var id string
			err := rows.Scan(&id)
			return id, err
		})
}

// UpsertChat inserts or replaces a chat.
func (db *DB) UpsertChat(c Chat) error {
	analytics := c.Analytics
	if analytics == "" {
		analytics = ChatAnalytics(c.Resolved, c.Ratings...)
	}
	platform := c.Platform
	if platform == "" {
		platform = "whatsapp"
	}
	status := c.Status
	if status == "" {
		status = "open"
	}
	priority := c.Priority
	if priority == "" {
		priority = "normal"
	}
	var lastMsg any
	if !c.LastMessageAt.IsZero() {
		lastMsg = formatTS(c.LastMessageAt)
	}
	return db.Update(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO chats (`+selectChatCols+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.OrganizationID, c.Name, platform,
			status, priority, c.Department,
			nilIfEmpty(c.AssignedAgentID),
			formatTS(c.CreatedAt), lastMsg, analytics,
		)
		if err != nil {
			return fmt.Errorf("upserting chat %s: %w", c.ID, err)
		}
		return nil
	})
}
