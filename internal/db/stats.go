package db

import (
	"context"
	"fmt"
)

// Stats holds row counts of one organization's mirrored tables,
// limited to what the caller may see.
type Stats struct {
	OrganizationID string `json:"organization_id"`
	ChatCount      int    `json:"chat_count"`
	MessageCount   int    `json:"message_count"`
	ProfileCount   int    `json:"profile_count"`
}

// StatsQuery selects the rows counted by GetStats.
type StatsQuery struct {
	OrgID string
	// Restricted limits chats and messages to ChatIDs and
	// profiles to AgentID. A restricted query with no chat ids
	// counts nothing.
	Restricted bool
	ChatIDs    []string
	AgentID    string
}

// GetStats returns the organization's row counts.
func (db *DB) GetStats(ctx context.Context, q StatsQuery) (Stats, error) {
	s := Stats{OrganizationID: q.OrgID}
	if q.Restricted && len(q.ChatIDs) == 0 {
		return s, nil
	}

	var err error
	s.ChatCount, err = db.countByChat(ctx, q,
		"SELECT COUNT(*) FROM chats WHERE organization_id = ?", "id")
	if err != nil {
		return Stats{}, fmt.Errorf("counting chats: %w", err)
	}
	s.MessageCount, err = db.countByChat(ctx, q,
		"SELECT COUNT(*) FROM messages WHERE organization_id = ?",
		"chat_id")
	if err != nil {
		return Stats{}, fmt.Errorf("counting messages: %w", err)
	}

	query := `SELECT COUNT(*) FROM profiles
		WHERE organization_id = ? AND deleted_at IS NULL`
	args := []any{q.OrgID}
	if q.Restricted {
		query += " AND id = ?"
		args = append(args, q.AgentID)
	}
	err = db.retry(ctx, func() error {
		return db.reader.QueryRowContext(ctx, query, args...).
			Scan(&s.ProfileCount)
	})
	if err != nil {
		return Stats{}, fmt.Errorf("counting profiles: %w", err)
	}
	return s, nil
}

// countByChat sums a count query over the chat allow-list,
// filtering column by each chunk when the query is restricted.
func (db *DB) countByChat(
	ctx context.Context, q StatsQuery, base, column string,
) (int, error) {
	count := func(query string, args []any) (int, error) {
		var n int
		err := db.retry(ctx, func() error {
			return db.reader.QueryRowContext(ctx, query, args...).
				Scan(&n)
		})
		return n, err
	}
	if !q.Restricted {
		return count(base, []any{q.OrgID})
	}

	total := 0
	err := queryChunked(q.ChatIDs, func(chunk []string) error {
		ph, chunkArgs := inPlaceholders(chunk)
		n, err := count(
			base+" AND "+column+" IN "+ph,
			append([]any{q.OrgID}, chunkArgs...),
		)
		total += n
		return err
	})
	return total, err
}
