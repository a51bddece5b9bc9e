package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Cypherspark/webhook-ingest/internal/core"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint hit.
const uniqueViolation = "23505"

// PostgresStore persists messages in PostgreSQL via a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and applies the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		message_id  TEXT PRIMARY KEY,
		from_msisdn TEXT NOT NULL,
		to_msisdn   TEXT NOT NULL,
		ts          TIMESTAMPTZ NOT NULL,
		text        TEXT,
		created_at  TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_from ON messages(from_msisdn);
	CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies connectivity and that the messages table exists.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return err
	}
	var applied bool
	err := s.pool.QueryRow(ctx, `SELECT to_regclass('messages') IS NOT NULL`).Scan(&applied)
	if err != nil {
		return err
	}
	if !applied {
		return errors.New("schema not applied: messages table missing")
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, msg core.Message) (InsertOutcome, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (message_id, from_msisdn, to_msisdn, ts, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.MessageID, msg.From, msg.To, msg.Ts, msg.Text, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return OutcomeDuplicate, nil
		}
		return 0, err
	}
	return OutcomeCreated, nil
}

func (s *PostgresStore) List(ctx context.Context, q ListQuery) ([]core.Message, int, error) {
	q = q.Normalize()

	var conds []string
	var args []any
	idx := 1
	if q.From != "" {
		conds = append(conds, fmt.Sprintf("from_msisdn = $%d", idx))
		args = append(args, q.From)
		idx++
	}
	if q.Since != nil {
		conds = append(conds, fmt.Sprintf("ts >= $%d", idx))
		args = append(args, *q.Since)
		idx++
	}
	if q.Q != "" {
		conds = append(conds, fmt.Sprintf(`text ILIKE $%d ESCAPE '\'`, idx))
		args = append(args, "%"+escapeLike(q.Q)+"%")
		idx++
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM messages"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT message_id, from_msisdn, to_msisdn, ts, text FROM messages%s
		ORDER BY ts ASC, message_id ASC
		LIMIT $%d OFFSET $%d
	`, where, idx, idx+1), append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]core.Message, 0, q.Limit)
	for rows.Next() {
		var m core.Message
		if err := rows.Scan(&m.MessageID, &m.From, &m.To, &m.Ts, &m.Text); err != nil {
			return nil, 0, err
		}
		m.Ts = m.Ts.UTC()
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (s *PostgresStore) Stats(ctx context.Context) (core.Stats, error) {
	stats := core.Stats{MessagesPerSender: make([]core.SenderCount, 0, 10)}

	var first, last *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT from_msisdn), MIN(ts), MAX(ts) FROM messages
	`).Scan(&stats.TotalMessages, &stats.SendersCount, &first, &last)
	if err != nil {
		return core.Stats{}, err
	}
	if first != nil {
		t := first.UTC()
		stats.FirstMessageTs = &t
	}
	if last != nil {
		t := last.UTC()
		stats.LastMessageTs = &t
	}

	rows, err := s.pool.Query(ctx, `
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
