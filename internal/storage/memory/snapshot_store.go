// Package memory provides an in-memory snapshot repository for
// development and testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jamesweston/viral-monitor/internal/store"
)

type snapshotKey struct {
	username string
	videoID  string
}

// SnapshotStore implements store.SnapshotRepository with mutex-guarded maps.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[snapshotKey]store.VideoSnapshot
	stats     map[string]store.MonitoringStat
	now       func() time.Time
}

// NewSnapshotStore constructs an empty SnapshotStore.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		snapshots: make(map[snapshotKey]store.VideoSnapshot),
		stats:     make(map[string]store.MonitoringStat),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// UpsertSnapshot writes a snapshot keyed by (username, video id).
func (s *SnapshotStore) UpsertSnapshot(_ context.Context, snap store.VideoSnapshot) (store.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := snapshotKey{username: snap.Username, videoID: snap.VideoID}
	snap.SampledAt = s.now()
	_, exists := s.snapshots[key]
	s.snapshots[key] = snap
	if exists {
		return store.Updated, nil
	}
	return store.Inserted, nil
}

// GetPrevious returns the stored snapshot for a video or ErrNotFound.
func (s *SnapshotStore) GetPrevious(_ context.Context, username, videoID string) (store.VideoSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[snapshotKey{username: username, videoID: videoID}]
	if !ok {
		return store.VideoSnapshot{}, store.ErrNotFound
	}
	return snap, nil
}

// RecordCycleResult updates the account's stat row.
func (s *SnapshotStore) RecordCycleResult(_ context.Context, res store.CycleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stat := s.stats[res.Username]
	stat.Username = res.Username
	stat.TotalScrapes++
	if res.Err != "" {
		stat.ErrorCount++
		errText := res.Err
		stat.LastError = &errText
	} else {
		stat.VideosSeen += int64(res.VideosFound)
		at := res.At
		stat.LastSampledAt = &at
	}
	s.stats[res.Username] = stat
	return nil
}

// RecordAlertSent increments alerts_sent and stamps last_alert_at.
func (s *SnapshotStore) RecordAlertSent(_ context.Context, username string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stat := s.stats[username]
	stat.Username = username
	stat.AlertsSent++
	alertAt := at
	stat.LastAlertAt = &alertAt
	s.stats[username] = stat
	return nil
}

// ListStats returns all stat rows ordered by username.
func (s *SnapshotStore) ListStats(_ context.Context) ([]store.MonitoringStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := make([]store.MonitoringStat, 0, len(s.stats))
	for _, stat := range s.stats {
		stats = append(stats, stat)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Username < stats[j].Username })
	return stats, nil
}

// SnapshotCount reports how many distinct (username, video) rows exist.
func (s *SnapshotStore) SnapshotCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

// Close is a no-op for the in-memory store.
func (s *SnapshotStore) Close() {}
