// Package postgres_test contains unit tests for the Postgres snapshot store.
package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jamesweston/viral-monitor/internal/metrics"
	"github.com/jamesweston/viral-monitor/internal/monitor"
	"github.com/jamesweston/viral-monitor/internal/storage/postgres"
	"github.com/jamesweston/viral-monitor/internal/store"
)

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }

func newMockStore(t *testing.T) (*postgres.SnapshotStore, pgxmock.PgxPoolIface) {
	t.Helper()
	metrics.Init()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	clock := fixedClock{at: time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)}
	policy := monitor.NewRetryPolicy(3, time.Millisecond, 5*time.Millisecond)
	return postgres.NewWithDB(mock, policy, clock, zap.NewNop()), mock
}

func TestSnapshotStore_UpsertInsertsNewRow(t *testing.T) {
	s, mock := newMockStore(t)

	desc := "new video"
	snap := store.VideoSnapshot{
		Username:    "creator",
		VideoID:     "v1",
		Description: &desc,
		Views:       1200,
		Likes:       80,
		Comments:    14,
		Shares:      3,
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO video_snapshots")).
		WithArgs(snap.Username, snap.VideoID, snap.Description, snap.Views,
			snap.Likes, snap.Comments, snap.Shares, snap.CreatedAt, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(true))

	result, err := s.UpsertSnapshot(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, store.Inserted, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotStore_UpsertUpdatesExistingRow(t *testing.T) {
	s, mock := newMockStore(t)

	snap := store.VideoSnapshot{Username: "creator", VideoID: "v1", Views: 5000}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO video_snapshots")).
		WithArgs(snap.Username, snap.VideoID, snap.Description, snap.Views,
			snap.Likes, snap.Comments, snap.Shares, snap.CreatedAt, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(false))

	result, err := s.UpsertSnapshot(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, store.Updated, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotStore_GetPreviousReturnsRow(t *testing.T) {
	s, mock := newMockStore(t)

	desc := "old video"
	sampled := time.Date(2026, 3, 14, 14, 55, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM video_snapshots")).
		WithArgs("creator", "v1").
		WillReturnRows(pgxmock.
			NewRows([]string{"username", "video_id", "description", "views", "likes", "comments", "shares", "created_at", "sampled_at"}).
			AddRow("creator", "v1", &desc, int64(900), int64(70), int64(10), int64(2), (*time.Time)(nil), sampled))

	snap, err := s.GetPrevious(context.Background(), "creator", "v1")
	require.NoError(t, err)
	assert.Equal(t, "creator", snap.Username)
	assert.Equal(t, int64(900), snap.Views)
	require.NotNil(t, snap.Description)
	assert.Equal(t, "old video", *snap.Description)
	assert.Equal(t, sampled, snap.SampledAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotStore_GetPreviousMissingRowIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	// ErrNoRows is a result, not a transient failure: exactly one query,
	// no retries.
	mock.ExpectQuery(regexp.QuoteMeta("FROM video_snapshots")).
		WithArgs("creator", "missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetPrevious(context.Background(), "creator", "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotStore_RecordCycleResultSuccess(t *testing.T) {
	s, mock := newMockStore(t)

	res := store.CycleResult{
		Username:    "creator",
		VideosFound: 5,
		At:          time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC),
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO monitoring_stats")).
		WithArgs(res.Username, res.VideosFound, res.At.UTC()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.RecordCycleResult(context.Background(), res))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotStore_RecordCycleResultError(t *testing.T) {
	s, mock := newMockStore(t)

	res := store.CycleResult{Username: "creator", Err: "scrape @creator (fatal): blocked"}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO monitoring_stats")).
		WithArgs(res.Username, res.Err).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.RecordCycleResult(context.Background(), res))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotStore_RecordAlertSent(t *testing.T) {
	s, mock := newMockStore(t)

	at := time.Date(2026, 3, 14, 15, 2, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO monitoring_stats")).
		WithArgs("creator", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.RecordAlertSent(context.Background(), "creator", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotStore_ListStats(t *testing.T) {
	s, mock := newMockStore(t)

	sampled := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM monitoring_stats")).
		WillReturnRows(pgxmock.
			NewRows([]string{"username", "total_scrapes", "videos_seen", "alerts_sent", "error_count", "last_sampled_at", "last_alert_at", "last_error"}).
			AddRow("creator", int64(10), int64(48), int64(2), int64(1), &sampled, (*time.Time)(nil), (*string)(nil)).
			AddRow("dancer", int64(10), int64(50), int64(0), int64(0), &sampled, (*time.Time)(nil), (*string)(nil)))

	stats, err := s.ListStats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "creator", stats[0].Username)
	assert.Equal(t, int64(10), stats[0].TotalScrapes)
	assert.Equal(t, int64(2), stats[0].AlertsSent)
	require.NotNil(t, stats[0].LastSampledAt)
	assert.Equal(t, "dancer", stats[1].Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotStore_RetriesTransientFailure(t *testing.T) {
	s, mock := newMockStore(t)

	at := time.Date(2026, 3, 14, 15, 2, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO monitoring_stats")).
		WithArgs("creator", at).
		WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO monitoring_stats")).
		WithArgs("creator", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.RecordAlertSent(context.Background(), "creator", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}
