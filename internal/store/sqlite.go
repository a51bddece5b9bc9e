package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Cypherspark/webhook-ingest/internal/core"
)

// SQLiteStore persists messages in a local SQLite file. Timestamps are
// stored as unix nanoseconds so (ts, message_id) ordering is exact
// regardless of the precision the caller used in the ts string.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and
// applies the schema. An empty path defaults to ./data/messages.db.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = "./data/messages.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		message_id  TEXT PRIMARY KEY,
		from_msisdn TEXT NOT NULL,
		to_msisdn   TEXT NOT NULL,
		ts          INTEGER NOT NULL,
		text        TEXT,
		created_at  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_from ON messages(from_msisdn);
	CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

// Ping verifies connectivity and that the messages table exists.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='messages'`).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("schema not applied: messages table missing")
	}
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, msg core.Message) (InsertOutcome, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (message_id, from_msisdn, to_msisdn, ts, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.MessageID, msg.From, msg.To, msg.Ts.UnixNano(), msg.Text, time.Now().UTC().UnixNano())
	if err != nil {
		var serr *sqlite.Error
		if errors.As(err, &serr) {
			switch serr.Code() {
			case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
				return OutcomeDuplicate, nil
			}
		}
		return 0, err
	}
	return OutcomeCreated, nil
}

func (s *SQLiteStore) List(ctx context.Context, q ListQuery) ([]core.Message, int, error) {
	q = q.Normalize()

	var conds []string
	var args []any
	if q.From != "" {
		conds = append(conds, "from_msisdn = ?")
		args = append(args, q.From)
	}
	if q.Since != nil {
		conds = append(conds, "ts >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if q.Q != "" {
		conds = append(conds, `LOWER(text) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(q.Q))+"%")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, from_msisdn, to_msisdn, ts, text FROM messages`+where+`
		ORDER BY ts ASC, message_id ASC
		LIMIT ? OFFSET ?
	`, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]core.Message, 0, q.Limit)
	for rows.Next() {
		var m core.Message
		var tsNanos int64
		if err := rows.Scan(&m.MessageID, &m.From, &m.To, &tsNanos, &m.Text); err != nil {
			return nil, 0, err
		}
		m.Ts = time.Unix(0, tsNanos).UTC()
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (s *SQLiteStore) Stats(ctx context.Context) (core.Stats, error) {
	stats := core.Stats{MessagesPerSender: make([]core.SenderCount, 0, 10)}

	var first, last sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT from_msisdn), MIN(ts), MAX(ts) FROM messages
	`).Scan(&stats.TotalMessages, &stats.SendersCount, &first, &last)
	if err != nil {
		return core.Stats{}, err
	}
	if first.Valid {
		t := time.Unix(0, first.Int64).UTC()
		stats.FirstMessageTs = &t
	}
	if last.Valid {
		t := time.Unix(0, last.Int64).UTC()
		stats.LastMessageTs = &t
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT from_msisdn, COUNT(*) AS n FROM messages
		GROUP BY from_msisdn
		ORDER BY n DESC, from_msisdn ASC
		LIMIT 10
	`)
	if err != nil {
		return core.Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var sc core.SenderCount
		if err := rows.Scan(&sc.From, &sc.Count); err != nil {
			return core.Stats{}, err
		}
		stats.MessagesPerSender = append(stats.MessagesPerSender, sc)
	}
	return stats, rows.Err()
}
