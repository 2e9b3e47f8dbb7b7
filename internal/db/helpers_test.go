package db

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

const testOrg = "org-1"

var tsBase = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func testDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.db"), opts...)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func insertChat(
	t *testing.T, d *DB, id, agent string, opts ...func(*Chat),
) {
	t.Helper()
	c := Chat{
		ID:              id,
		OrganizationID:  testOrg,
		Name:            "Customer " + id,
		AssignedAgentID: agent,
		CreatedAt:       tsBase.Add(-time.Hour),
	}
	for _, opt := range opts {
		opt(&c)
	}
	if err := d.UpsertChat(c); err != nil {
		t.Fatalf("UpsertChat %s: %v", id, err)
	}
}

// insertMessages adds n messages to chatID one minute apart
// starting at start, alternating customer and agent.
func insertMessages(
	t *testing.T, d *DB, chatID string, n int, start time.Time,
) {
	t.Helper()
	msgs := make([]Message, n)
	for i := range n {
		msgs[i] = Message{
			ChatID:         chatID,
			OrganizationID: testOrg,
			Content:        fmt.Sprintf("msg %d", i),
			CreatedAt:      start.Add(time.Duration(i) * time.Minute),
			IsFromMe:       i%2 == 1,
			SenderName:     "sender",
		}
	}
	if err := d.InsertMessages(msgs); err != nil {
		t.Fatalf("InsertMessages: %v", err)
	}
}

func dayQuery() MessageQuery {
	return MessageQuery{
		OrgID: testOrg,
		From:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		To:    time.Date(2024, 6, 1, 23, 59, 59, 999e6, time.UTC),
	}
}
