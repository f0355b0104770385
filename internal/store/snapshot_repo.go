// Package store declares the persistence models and repository interfaces
// for video snapshots and per-account monitoring statistics.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("snapshot record not found")

// UpsertResult reports whether an upsert created or refreshed a row.
type UpsertResult string

// Upsert outcomes returned by SnapshotRepository.UpsertSnapshot.
const (
	Inserted UpsertResult = "inserted"
	Updated  UpsertResult = "updated"
)

// VideoSnapshot is one point-in-time record of a video's engagement
// counters. Rows are unique per (Username, VideoID); re-sampling the same
// video refreshes the counters and SampledAt in place.
type VideoSnapshot struct {
	// Username is the normalized account handle that owns the video.
	Username string
	// VideoID is the platform identifier, immutable once first seen.
	VideoID string
	// Description is the caption text, nil when the source omitted it.
	Description *string
	// Views, Likes, Comments, Shares are the engagement counters.
	Views    int64
	Likes    int64
	Comments int64
	Shares   int64
	// CreatedAt is the source-provided creation time, nil when unknown.
	CreatedAt *time.Time
	// SampledAt is set by the store on every write.
	SampledAt time.Time
}

// MonitoringStat carries per-account operational health, updated after
// every cycle attempt regardless of outcome.
type MonitoringStat struct {
	Username      string
	TotalScrapes  int64
	VideosSeen    int64
	AlertsSent    int64
	ErrorCount    int64
	LastSampledAt *time.Time
	LastAlertAt   *time.Time
	LastError     *string
}

// CycleResult summarizes one attempt to sample an account.
type CycleResult struct {
	Username    string
	VideosFound int
	// Err is the failure text for the attempt; empty means success.
	Err string
	At  time.Time
}

// SnapshotRepository persists video snapshots and monitoring stats.
//
// UpsertSnapshot must be atomic per row: a sample is either fully written
// or not at all, even under abrupt interruption.
type SnapshotRepository interface {
	// UpsertSnapshot writes a snapshot keyed by (username, video id) and
	// reports whether this was the first sighting or a recurrence.
	UpsertSnapshot(ctx context.Context, snap VideoSnapshot) (UpsertResult, error)
	// GetPrevious returns the last stored counters for a video, or
	// ErrNotFound. Callers read this before the upsert that overwrites it.
	GetPrevious(ctx context.Context, username, videoID string) (VideoSnapshot, error)
	// RecordCycleResult unconditionally updates the account's stat row.
	RecordCycleResult(ctx context.Context, res CycleResult) error
	// RecordAlertSent increments alerts_sent and stamps last_alert_at.
	RecordAlertSent(ctx context.Context, username string, at time.Time) error
	// ListStats returns all stat rows ordered by username.
	ListStats(ctx context.Context) ([]MonitoringStat, error)
	// Close releases the underlying connections.
	Close()
}
