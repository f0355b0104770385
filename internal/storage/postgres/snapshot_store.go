// Package postgres provides the Postgres-backed snapshot repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jamesweston/viral-monitor/internal/metrics"
	"github.com/jamesweston/viral-monitor/internal/monitor"
	"github.com/jamesweston/viral-monitor/internal/store"
)

// DB is the subset of pgxpool.Pool the store depends on; pgxmock
// implements it for tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// SnapshotStore implements store.SnapshotRepository using Postgres.
// Transient failures are retried with backoff before being surfaced.
type SnapshotStore struct {
	db     DB
	policy monitor.RetryPolicy
	clock  monitor.Clock
	logger *zap.Logger
}

// NewSnapshotStore connects a pool and wraps it in a SnapshotStore.
func NewSnapshotStore(ctx context.Context, dsn string, policy monitor.RetryPolicy, clock monitor.Clock, logger *zap.Logger) (*SnapshotStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewWithDB(pool, policy, clock, logger), nil
}

// NewWithDB builds a SnapshotStore over an existing connection, used by
// tests to inject a mock pool.
func NewWithDB(db DB, policy monitor.RetryPolicy, clock monitor.Clock, logger *zap.Logger) *SnapshotStore {
	return &SnapshotStore{db: db, policy: policy, clock: clock, logger: logger}
}

// Close closes the underlying connection pool.
func (s *SnapshotStore) Close() {
	s.db.Close()
}

// EnsureSchema creates the two tables the monitor owns. The uniqueness
// constraints on (username, video_id) and username are load-bearing and
// must survive any schema evolution.
func (s *SnapshotStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS video_snapshots (
			username    TEXT NOT NULL,
			video_id    TEXT NOT NULL,
			description TEXT,
			views       BIGINT NOT NULL DEFAULT 0,
			likes       BIGINT NOT NULL DEFAULT 0,
			comments    BIGINT NOT NULL DEFAULT 0,
			shares      BIGINT NOT NULL DEFAULT 0,
			created_at  TIMESTAMPTZ,
			sampled_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (username, video_id)
		);`,
		`CREATE TABLE IF NOT EXISTS monitoring_stats (
			username        TEXT PRIMARY KEY,
			total_scrapes   BIGINT NOT NULL DEFAULT 0,
			videos_seen     BIGINT NOT NULL DEFAULT 0,
			alerts_sent     BIGINT NOT NULL DEFAULT 0,
			error_count     BIGINT NOT NULL DEFAULT 0,
			last_sampled_at TIMESTAMPTZ,
			last_alert_at   TIMESTAMPTZ,
			last_error      TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_sampled_at ON video_snapshots (username, sampled_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// UpsertSnapshot writes a snapshot row atomically, refreshing counters and
// sampled_at when the (username, video_id) key already exists.
func (s *SnapshotStore) UpsertSnapshot(ctx context.Context, snap store.VideoSnapshot) (store.UpsertResult, error) {
	query := `
		INSERT INTO video_snapshots
			(username, video_id, description, views, likes, comments, shares, created_at, sampled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (username, video_id) DO UPDATE
		SET description = EXCLUDED.description,
			views = EXCLUDED.views,
			likes = EXCLUDED.likes,
			comments = EXCLUDED.comments,
			shares = EXCLUDED.shares,
			sampled_at = EXCLUDED.sampled_at
		RETURNING (xmax = 0) AS inserted;
	`
	sampledAt := s.clock.Now().UTC()

	var inserted bool
	err := s.withRetry(ctx, "upsert snapshot", func() error {
		return s.db.QueryRow(ctx, query,
			snap.Username,
			snap.VideoID,
			snap.Description,
			snap.Views,
			snap.Likes,
			snap.Comments,
			snap.Shares,
			snap.CreatedAt,
			sampledAt,
		).Scan(&inserted)
	})
	if err != nil {
		return "", err
	}
	if inserted {
		return store.Inserted, nil
	}
	return store.Updated, nil
}

// GetPrevious returns the last stored counters for a video before the
// pending write is applied, or store.ErrNotFound.
func (s *SnapshotStore) GetPrevious(ctx context.Context, username, videoID string) (store.VideoSnapshot, error) {
	query := `
		SELECT username, video_id, description, views, likes, comments, shares, created_at, sampled_at
		FROM video_snapshots
		WHERE username = $1 AND video_id = $2;
	`
	var snap store.VideoSnapshot
	err := s.withRetry(ctx, "get previous snapshot", func() error {
		return s.db.QueryRow(ctx, query, username, videoID).Scan(
			&snap.Username,
			&snap.VideoID,
			&snap.Description,
			&snap.Views,
			&snap.Likes,
			&snap.Comments,
			&snap.Shares,
			&snap.CreatedAt,
			&snap.SampledAt,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.VideoSnapshot{}, store.ErrNotFound
		}
		return store.VideoSnapshot{}, err
	}
	return snap, nil
}

// RecordCycleResult updates the account's stat row after every cycle
// attempt: errors raise error_count and last_error, successes advance
// last_sampled_at and videos_seen. total_scrapes always increments.
func (s *SnapshotStore) RecordCycleResult(ctx context.Context, res store.CycleResult) error {
	if res.Err != "" {
		query := `
			INSERT INTO monitoring_stats (username, total_scrapes, error_count, last_error)
			VALUES ($1, 1, 1, $2)
			ON CONFLICT (username) DO UPDATE
			SET total_scrapes = monitoring_stats.total_scrapes + 1,
				error_count = monitoring_stats.error_count + 1,
				last_error = EXCLUDED.last_error;
		`
		return s.withRetry(ctx, "record cycle error", func() error {
			_, err := s.db.Exec(ctx, query, res.Username, res.Err)
			return err
		})
	}

	query := `
		INSERT INTO monitoring_stats (username, total_scrapes, videos_seen, last_sampled_at)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (username) DO UPDATE
		SET total_scrapes = monitoring_stats.total_scrapes + 1,
			videos_seen = monitoring_stats.videos_seen + EXCLUDED.videos_seen,
			last_sampled_at = EXCLUDED.last_sampled_at;
	`
	return s.withRetry(ctx, "record cycle result", func() error {
		_, err := s.db.Exec(ctx, query, res.Username, res.VideosFound, res.At.UTC())
		return err
	})
}

// RecordAlertSent increments alerts_sent and stamps last_alert_at.
func (s *SnapshotStore) RecordAlertSent(ctx context.Context, username string, at time.Time) error {
	query := `
		INSERT INTO monitoring_stats (username, alerts_sent, last_alert_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (username) DO UPDATE
		SET alerts_sent = monitoring_stats.alerts_sent + 1,
			last_alert_at = EXCLUDED.last_alert_at;
	`
	return s.withRetry(ctx, "record alert sent", func() error {
		_, err := s.db.Exec(ctx, query, username, at.UTC())
		return err
	})
}

// ListStats returns all stat rows ordered by username.
func (s *SnapshotStore) ListStats(ctx context.Context) ([]store.MonitoringStat, error) {
	query := `
		SELECT username, total_scrapes, videos_seen, alerts_sent, error_count,
			last_sampled_at, last_alert_at, last_error
		FROM monitoring_stats
		ORDER BY username;
	`
	var stats []store.MonitoringStat
	err := s.withRetry(ctx, "list stats", func() error {
		rows, err := s.db.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		stats = stats[:0]
		for rows.Next() {
			var stat store.MonitoringStat
			if err := rows.Scan(
				&stat.Username,
				&stat.TotalScrapes,
				&stat.VideosSeen,
				&stat.AlertsSent,
				&stat.ErrorCount,
				&stat.LastSampledAt,
				&stat.LastAlertAt,
				&stat.LastError,
			); err != nil {
				return fmt.Errorf("scan stat row: %w", err)
			}
			stats = append(stats, stat)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// withRetry runs op, retrying transient failures with backoff. ErrNoRows
// is a result, not a failure, and returns immediately.
func (s *SnapshotStore) withRetry(ctx context.Context, name string, op func() error) error {
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if ctx.Err() != nil || !s.policy.ShouldRetry(err, attempt) {
			return fmt.Errorf("%s: %w", name, err)
		}
		metrics.ObserveStoreRetry()
		s.logger.Warn("Storage operation failed, retrying",
			zap.String("op", name),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		timer := time.NewTimer(s.policy.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", name, ctx.Err())
		case <-timer.C:
		}
	}
}
