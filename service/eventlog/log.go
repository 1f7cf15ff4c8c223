package eventlog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Log is the append-only event store. Append assigns Seq and RecordedAt and
// persists the event; Replay streams every event in Seq order so a caller
// can fold them into fresh in-memory state.
type Log interface {
	Append(ctx context.Context, kind Kind, payload any) (Event, error)
	Replay(ctx context.Context, fn func(Event) error) error
	LastSeq(ctx context.Context) (uint64, error)
}

// PostgresLog persists events to a single append-only bridge_events table.
// It supersedes the teacher's relational wallets/transactions schema: every
// piece of bridge state is derived from this log, not queried directly.
type PostgresLog struct {
	pool *pgxpool.Pool
}

// NewPostgresLog wraps an existing connection pool. The caller owns the
// pool's lifecycle.
func NewPostgresLog(pool *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{pool: pool}
}

// EnsureSchema creates the bridge_events table if it does not already exist.
// Safe to call on every startup.
func (l *PostgresLog) EnsureSchema(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS bridge_events (
			seq         BIGSERIAL PRIMARY KEY,
			kind        TEXT NOT NULL,
			payload     JSONB NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("eventlog: ensure schema: %w", err)
	}
	return nil
}

// Append inserts a new event and returns it with Seq/RecordedAt populated.
func (l *PostgresLog) Append(ctx context.Context, kind Kind, payload any) (Event, error) {
	ev, err := NewEvent(kind, payload)
	if err != nil {
		return Event{}, err
	}

	row := l.pool.QueryRow(ctx, `
		INSERT INTO bridge_events (kind, payload)
		VALUES ($1, $2)
		RETURNING seq, recorded_at
	`, string(ev.Kind), ev.Payload)

	if err := row.Scan(&ev.Seq, &ev.RecordedAt); err != nil {
		return Event{}, fmt.Errorf("eventlog: append %s: %w", kind, err)
	}
	return ev, nil
}

// Replay streams every event in ascending Seq order, invoking fn for each.
// fn returning an error stops the replay and the error is returned.
func (l *PostgresLog) Replay(ctx context.Context, fn func(Event) error) error {
	rows, err := l.pool.Query(ctx, `
		SELECT seq, kind, payload, recorded_at
		FROM bridge_events
		ORDER BY seq ASC
	`)
	if err != nil {
		return fmt.Errorf("eventlog: replay query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev Event
		var kind string
		if err := rows.Scan(&ev.Seq, &kind, &ev.Payload, &ev.RecordedAt); err != nil {
			return fmt.Errorf("eventlog: replay scan: %w", err)
		}
		ev.Kind = Kind(kind)
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("eventlog: replay rows: %w", err)
	}
	return nil
}

// LastSeq returns the highest Seq recorded, or 0 if the log is empty.
func (l *PostgresLog) LastSeq(ctx context.Context) (uint64, error) {
	var seq uint64
	err := l.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM bridge_events`).Scan(&seq)
	if err != nil && err != pgx.ErrNoRows {
		return 0, fmt.Errorf("eventlog: last seq: %w", err)
	}
	return seq, nil
}
