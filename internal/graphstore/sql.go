package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
)

// Rows abstracts sql.Rows so resolvers can be exercised without a live database.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Querier runs read-only SQL for the graph resolvers.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	PingContext(ctx context.Context) error
}

// DBQuerier executes queries directly against a database handle.
type DBQuerier struct {
	db *sql.DB
}

// NewDBQuerier wraps db.
func NewDBQuerier(db *sql.DB) *DBQuerier {
	return &DBQuerier{db: db}
}

func (q *DBQuerier) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if q.db == nil {
		return nil, sql.ErrConnDone
	}
	return q.db.QueryContext(ctx, query, args...)
}

func (q *DBQuerier) PingContext(ctx context.Context) error {
	if q.db == nil {
		return sql.ErrConnDone
	}
	return q.db.PingContext(ctx)
}

// convertValue normalizes driver values into GraphQL-serializable ones.
// Array-typed columns are stored as JSON text.
func convertValue(val any, array bool) any {
	if val == nil {
		return nil
	}
	var text string
	switch v := val.(type) {
	case []byte:
		text = string(v)
	case string:
		text = v
	default:
		return val
	}
	if !array {
		return text
	}
	var items []any
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return text
	}
	return items
}
