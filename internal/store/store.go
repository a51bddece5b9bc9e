package store

import (
	"context"
	"strings"
	"time"

	"github.com/Cypherspark/webhook-ingest/internal/core"
)

// InsertOutcome reports how an insert resolved. Duplicate is not an
// error: retried deliveries of the same message_id are expected.
type InsertOutcome int

const (
	OutcomeCreated InsertOutcome = iota
	OutcomeDuplicate
)

func (o InsertOutcome) String() string {
	if o == OutcomeDuplicate {
		return "duplicate"
	}
	return "created"
}

// Pagination bounds for List.
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// ListQuery carries the optional, AND-combined filters plus pagination.
// A nil Since and empty From/Q mean unfiltered.
type ListQuery struct {
	From   string
	Since  *time.Time
	Q      string
	Limit  int
	Offset int
}

// Normalize clamps Limit into [1,MaxLimit] (DefaultLimit when unset) and
// Offset to >= 0.
func (q ListQuery) Normalize() ListQuery {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit < 1 {
		q.Limit = 1
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// MessageStore is the persistence contract. Both the SQLite and the
// PostgreSQL backends implement it.
type MessageStore interface {
	// Insert stores a message idempotently. Uniqueness of message_id is
	// enforced by the storage-level constraint; a violation resolves to
	// OutcomeDuplicate with no error.
	Insert(ctx context.Context, msg core.Message) (InsertOutcome, error)

	// List returns one page of messages matching the filters, ordered by
	// (ts ASC, message_id ASC), plus the total count of matching rows
	// regardless of pagination.
	List(ctx context.Context, q ListQuery) ([]core.Message, int, error)

	// Stats computes the message-level aggregates. An empty store yields
	// zero counts and nil timestamps, not an error.
	Stats(ctx context.Context) (core.Stats, error)

	// Ping reports whether the store is reachable and its schema applied.
	Ping(ctx context.Context) error

	Close()
}

// Open selects a backend from the connection string: postgres:// URLs go
// to pgx, anything else is treated as a SQLite path (an optional
// sqlite:// prefix is stripped).
func Open(ctx context.Context, databaseURL string) (MessageStore, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return NewPostgresStore(ctx, databaseURL)
	default:
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		return NewSQLiteStore(ctx, path)
	}
}

// escapeLike makes %, _ and the escape character itself match literally
// inside a LIKE pattern (paired with ESCAPE '\' in the queries).
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
