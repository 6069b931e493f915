package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qcjiangqianchen/bolt.diy/internal/log"
)

// PostgresStore persists events in the analytics_events table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an existing connection pool. The pool's lifecycle
// belongs to the caller.
func NewPostgresStore(pool *pgxpool.Pool, logger log.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

func (s *PostgresStore) RecordEvent(ctx context.Context, ev Event) error {
	if ev.App == "" {
		return ErrAppRequired
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO analytics_events (app, path, session_id, recorded_at)
		 VALUES ($1, $2, $3, $4)`,
		ev.App, ev.Path, ev.SessionID, ev.At)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

func (s *PostgresStore) EventsFor(ctx context.Context, app string) ([]Event, error) {
	if app == "" {
		return nil, ErrAppRequired
	}

	rows, err := s.pool.Query(ctx,
		`SELECT app, path, session_id, recorded_at
		 FROM analytics_events
		 WHERE app = $1
		 ORDER BY recorded_at`,
		app)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.App, &ev.Path, &ev.SessionID, &ev.At); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM analytics_events WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return tag.RowsAffected(), nil
}
