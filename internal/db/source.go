package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// MaxRowsPerFetch is the hard cap on rows a single fetch returns.
// The hosted store this mirrors truncates at the same size, so
// every read path pages instead of trusting one query.
const MaxRowsPerFetch = 1000

// maxSQLVars is the maximum bind variables per IN clause to stay
// within SQLite's default SQLITE_MAX_VARIABLE_NUMBER (999).
const maxSQLVars = 500

// tsLayout is the fixed-width UTC layout used for stored
// timestamps so text comparison orders them correctly.
const tsLayout = "2006-01-02T15:04:05.000Z"

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

// inPlaceholders returns a "(?,?,...)" string and []any args for
// a slice of string IDs.
func inPlaceholders(ids []string) (string, []any) {
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = "?"
		args[i] = id
	}
	return "(" + strings.Join(ph, ",") + ")", args
}

// queryChunked executes a callback for each chunk of IDs,
// splitting at maxSQLVars to avoid SQLite bind-variable limits.
func queryChunked(
	ids []string,
	fn func(chunk []string) error,
) error {
	for i := 0; i < len(ids); i += maxSQLVars {
		end := min(i+maxSQLVars, len(ids))
		if err := fn(ids[i:end]); err != nil {
			return err
		}
	}
	return nil
}

// pageAll runs query with LIMIT/OFFSET appended until a short
// page comes back. No single page exceeds MaxRowsPerFetch.
func pageAll[T any](
	ctx context.Context, db *DB, table string,
	query string, args []any,
	scan func(*sql.Rows) (T, error),
) ([]T, error) {
	var out []T
	for offset := 0; ; {
		page, err := fetchPage(
			ctx, db, table, query, args,
			db.pageSize, offset, scan,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < db.pageSize {
			return out, nil
		}
		offset += len(page)
	}
}

// fetchPage runs one capped page of query.
func fetchPage[T any](
	ctx context.Context, db *DB, table string,
	query string, args []any,
	limit, offset int,
	scan func(*sql.Rows) (T, error),
) ([]T, error) {
	limit = min(limit, MaxRowsPerFetch)
	pageArgs := append(append([]any(nil), args...), limit, offset)

	var page []T
	err := db.retry(ctx, func() error {
		page = page[:0]
		rows, err := db.reader.QueryContext(
			ctx, query+" LIMIT ? OFFSET ?", pageArgs...,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			v, err := scan(rows)
			if err != nil {
				return err
			}
			page = append(page, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s page: %w", table, err)
	}
	if db.onPage != nil {
		db.onPage(table, len(page))
	}
	return page, nil
}

// MessageQuery selects messages for one organization and window.
type MessageQuery struct {
	OrgID string
	From  time.Time // inclusive
	To    time.Time // inclusive
	// Restricted limits rows to ChatIDs. A restricted query with
	// no chat ids matches nothing.
	Restricted bool
	ChatIDs    []string
}

func (q MessageQuery) matchesNothing() bool {
	return q.Restricted && len(q.ChatIDs) == 0
}

// where returns the predicate and args for one chunk of the
// allow-list (nil chunk when unrestricted).
func (q MessageQuery) where(chunk []string) (string, []any) {
	preds := []string{
		"organization_id = ?",
		"created_at >= ?",
		"created_at <= ?",
	}
	args := []any{q.OrgID, formatTS(q.From), formatTS(q.To)}
	if q.Restricted {
		ph, chunkArgs := inPlaceholders(chunk)
		preds = append(preds, "chat_id IN "+ph)
		args = append(args, chunkArgs...)
	}
	return strings.Join(preds, " AND "), args
}

// chunks splits the allow-list; an unrestricted query is one
// chunk with no ids.
func (q MessageQuery) chunks() [][]string {
	if !q.Restricted {
		return [][]string{nil}
	}
	var out [][]string
	_ = queryChunked(q.ChatIDs, func(c []string) error {
		out = append(out, c)
		return nil
	})
	return out
}

// FetchMode chooses between exhaustive paging and a bounded
// sample.
type FetchMode struct {
	sample int
}

// FetchAll retrieves every matching row.
var FetchAll = FetchMode{}

// FetchSample retrieves at most n of the newest rows.
func FetchSample(n int) FetchMode {
	if n <= 0 {
		n = 1
	}
	return FetchMode{sample: min(n, MaxRowsPerFetch)}
}

// PagedFetch is the result of a message fetch. AuthoritativeCount
// comes from a count-only query and is the number to report, even
// when Sample holds fewer rows.
type PagedFetch struct {
	Sample             []Message `json:"sample"`
	AuthoritativeCount int       `json:"authoritative_count"`
	IsComplete         bool      `json:"is_complete"`
}

// CountMessages returns the true number of matching messages.
func (db *DB) CountMessages(
	ctx context.Context, q MessageQuery,
) (int, error) {
	if q.matchesNothing() {
		return 0, nil
	}
	total := 0
	for _, chunk := range q.chunks() {
		where, args := q.where(chunk)
		var n int
		err := db.retry(ctx, func() error {
			return db.reader.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM messages WHERE "+where,
				args...,
			).Scan(&n)
		})
		if err != nil {
			return 0, fmt.Errorf("counting messages: %w", err)
		}
		total += n
	}
	return total, nil
}

// FetchMessages returns matching messages ordered by created_at
// and the authoritative count.
func (db *DB) FetchMessages(
	ctx context.Context, q MessageQuery, mode FetchMode,
) (PagedFetch, error) {
	if q.matchesNothing() {
		return PagedFetch{IsComplete: true}, nil
	}

	count, err := db.CountMessages(ctx, q)
	if err != nil {
		return PagedFetch{}, err
	}

	var rows []Message
	for _, chunk := range q.chunks() {
		where, args := q.where(chunk)
		var part []Message
		if mode.sample > 0 {
			part, err = fetchPage(ctx, db, "messages",
				"SELECT "+selectMessageCols+
					" FROM messages WHERE "+where+
					" ORDER BY created_at DESC, id DESC",
				args, mode.sample, 0, scanMessage)
		} else {
			part, err = pageAll(ctx, db, "messages",
				"SELECT "+selectMessageCols+
					" FROM messages WHERE "+where+
					" ORDER BY created_at, id",
				args, scanMessage)
		}
		if err != nil {
			return PagedFetch{AuthoritativeCount: count}, err
		}
		rows = append(rows, part...)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].ID < rows[j].ID
	})
	if mode.sample > 0 && len(rows) > mode.sample {
		rows = rows[len(rows)-mode.sample:]
	}

	return PagedFetch{
		Sample:             rows,
		AuthoritativeCount: count,
		IsComplete:         len(rows) >= count,
	}, nil
}
