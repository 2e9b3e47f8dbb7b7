package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/zapdesk/zapmetrics/internal/timeutil"
)

const (
	selectMessageCols = `id, chat_id, organization_id, content,
		created_at, is_from_me, sender_name`

	insertMessageCols = `chat_id, organization_id, content,
		created_at, is_from_me, sender_name`
)

// Message represents a row in the messages table. IsFromMe marks
// agent-authored messages; the rest come from the customer.
type Message struct {
	ID             int64     `json:"id"`
	ChatID         string    `json:"chat_id"`
	OrganizationID string    `json:"organization_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	IsFromMe       bool      `json:"is_from_me"`
	SenderName     string    `json:"sender_name"`
}

func scanMessage(rows *sql.Rows) (Message, error) {
	var m Message
	var chatID sql.NullString
	var ts string
	if err := rows.Scan(
		&m.ID, &chatID, &m.OrganizationID, &m.Content,
		&ts, &m.IsFromMe, &m.SenderName,
	); err != nil {
		return Message{}, fmt.Errorf("scanning message: %w", err)
	}
	m.ChatID = chatID.String
	if t, ok := timeutil.Parse(ts); ok {
		m.CreatedAt = t
	}
	return m, nil
}

// InsertMessages batch-inserts messages in one transaction.
func (db *DB) InsertMessages(msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return db.Update(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(fmt.Sprintf(`
			INSERT INTO messages (%s)
			VALUES (?, ?, ?, ?, ?, ?)`, insertMessageCols))
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for i, m := range msgs {
			if _, err := stmt.Exec(
				nilIfEmpty(m.ChatID), m.OrganizationID,
				m.Content, formatTS(m.CreatedAt),
				m.IsFromMe, m.SenderName,
			); err != nil {
				return fmt.Errorf(
					"inserting message %d: %w", i, err,
				)
			}
		}
		return nil
	})
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
