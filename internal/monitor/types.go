// Package monitor defines the core types and interfaces of the viral
// monitoring engine: the delta detector, the retry policy, and the cycle
// orchestrator that drives repeated sampling of monitored accounts.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/jamesweston/viral-monitor/internal/store"
)

// RawVideo is one video record as returned by the scraping collaborator,
// before normalization.
type RawVideo struct {
	ID          string
	Description string
	Views       int64
	Likes       int64
	Comments    int64
	Shares      int64
	CreatedAt   *time.Time
}

// ViralEvent is an alert-worthy view delta detected for one video. It is
// transient: produced by Detect, consumed once by the notifier.
type ViralEvent struct {
	ID            string
	Username      string
	VideoID       string
	Description   string
	PreviousViews int64
	CurrentViews  int64
	Delta         int64
	Likes         int64
	Comments      int64
	Shares        int64
	DetectedAt    time.Time
}

// VideoURL returns the public link to the video that went viral.
func (e ViralEvent) VideoURL() string {
	return fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", e.Username, e.VideoID)
}

// Scraper is the external scraping collaborator. Implementations fetch the
// latest videos for a handle and surface failures as *ScrapeError.
type Scraper interface {
	Fetch(ctx context.Context, handle string) ([]RawVideo, error)
}

// AccountFetcher returns normalized, deduplicated snapshots for a handle.
// The scrape adapter implements this on top of a Scraper.
type AccountFetcher interface {
	FetchAccountVideos(ctx context.Context, handle string) ([]store.VideoSnapshot, error)
}

// Notifier delivers viral alerts. Send failures are logged and swallowed
// by the orchestrator; they never re-enter the scrape pipeline.
type Notifier interface {
	Send(ctx context.Context, event ViralEvent) error
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// RetryPolicy decides whether and when to retry a failed operation.
type RetryPolicy interface {
	// ShouldRetry reports whether another attempt is worthwhile after err.
	// attempt is 1-based and counts the attempt that just failed.
	ShouldRetry(err error, attempt int) bool
	// Backoff returns the wait duration before the next attempt.
	Backoff(attempt int) time.Duration
}

// ResourceStatus is the governor's verdict on current resource usage.
type ResourceStatus string

// Governor verdicts.
const (
	ResourceOK        ResourceStatus = "ok"
	ResourceOverLimit ResourceStatus = "over_limit"
)

// ResourceGovernor tracks process resource usage. Check never blocks;
// Cleanup is a best-effort release of reclaimable memory.
type ResourceGovernor interface {
	Check() ResourceStatus
	Cleanup()
}
