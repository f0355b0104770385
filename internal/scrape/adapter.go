// Package scrape wraps the external scraping collaborator with retry,
// timeout and normalization so the orchestrator always receives a single,
// complete, deduplicated list of snapshots per call.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jamesweston/viral-monitor/internal/metrics"
	"github.com/jamesweston/viral-monitor/internal/monitor"
	"github.com/jamesweston/viral-monitor/internal/store"
)

// Sentinel errors a Scraper implementation may return; the adapter maps
// them to a recoverability kind.
var (
	ErrAccountNotFound = errors.New("scrape: account not found")
	ErrBlocked         = errors.New("scrape: account permanently blocked")
	ErrCaptcha         = errors.New("scrape: captcha required")
	ErrRateLimited     = errors.New("scrape: rate limited")
)

// Config controls Adapter behavior.
type Config struct {
	// AttemptTimeout bounds a single scrape attempt.
	AttemptTimeout time.Duration
	// MaxVideos caps how many of the latest videos are kept per account.
	MaxVideos int
}

// Adapter implements monitor.AccountFetcher on top of a raw Scraper.
type Adapter struct {
	scraper monitor.Scraper
	policy  monitor.RetryPolicy
	clock   monitor.Clock
	cfg     Config
	logger  *zap.Logger
}

// NewAdapter constructs an Adapter.
func NewAdapter(scraper monitor.Scraper, policy monitor.RetryPolicy, clock monitor.Clock, cfg Config, logger *zap.Logger) *Adapter {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	if cfg.MaxVideos <= 0 {
		cfg.MaxVideos = 5
	}
	return &Adapter{
		scraper: scraper,
		policy:  policy,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
}

// FetchAccountVideos fetches the latest videos for handle, retrying
// recoverable failures with backoff. The returned slice preserves the
// source order, contains at most one entry per video id, and every
// counter is a non-negative integer.
func (a *Adapter) FetchAccountVideos(ctx context.Context, handle string) ([]store.VideoSnapshot, error) {
	var lastErr *monitor.ScrapeError
	for attempt := 1; ; attempt++ {
		start := a.clock.Now()
		raw, err := a.fetchOnce(ctx, handle)
		metrics.ObserveScrapeDuration(a.clock.Now().Sub(start))
		if err == nil {
			return a.normalize(handle, raw), nil
		}

		lastErr = a.classify(handle, err)
		if ctx.Err() != nil || !a.policy.ShouldRetry(lastErr, attempt) {
			return nil, lastErr
		}
		a.logger.Warn("Scrape attempt failed, backing off",
			zap.String("handle", handle),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		if err := a.pause(ctx, a.policy.Backoff(attempt)); err != nil {
			return nil, lastErr
		}
	}
}

// fetchOnce runs a single attempt detached from shutdown cancellation:
// an in-flight attempt finishes or hits its own deadline, never an
// abrupt cancel. The retry loop observes ctx and stops after the attempt.
func (a *Adapter) fetchOnce(ctx context.Context, handle string) ([]monitor.RawVideo, error) {
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.AttemptTimeout)
	defer cancel()
	return a.scraper.Fetch(attemptCtx, handle)
}

// classify translates an arbitrary scraper failure into a ScrapeError.
// Timeouts, rate limits and captcha challenges are recoverable; missing
// or blocked accounts are fatal.
func (a *Adapter) classify(handle string, err error) *monitor.ScrapeError {
	var scrapeErr *monitor.ScrapeError
	if errors.As(err, &scrapeErr) {
		return scrapeErr
	}
	kind := monitor.ScrapeRecoverable
	if errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrBlocked) {
		kind = monitor.ScrapeFatal
	}
	return &monitor.ScrapeError{Handle: handle, Kind: kind, Err: err}
}

// normalize converts raw records into snapshot rows: malformed records are
// dropped with a logged reason, counters are clamped to zero, duplicates
// keep their first occurrence, and the list is capped at MaxVideos.
func (a *Adapter) normalize(handle string, raw []monitor.RawVideo) []store.VideoSnapshot {
	seen := make(map[string]struct{}, len(raw))
	snaps := make([]store.VideoSnapshot, 0, len(raw))
	for _, v := range raw {
		if v.ID == "" {
			a.logger.Warn("Dropping video record without id", zap.String("handle", handle))
			continue
		}
		if _, dup := seen[v.ID]; dup {
			continue
		}
		seen[v.ID] = struct{}{}

		snap := store.VideoSnapshot{
			Username: handle,
			VideoID:  v.ID,
			Views:    clamp(v.Views),
			Likes:    clamp(v.Likes),
			Comments: clamp(v.Comments),
			Shares:   clamp(v.Shares),
		}
		if v.Description != "" {
			desc := v.Description
			snap.Description = &desc
		}
		if v.CreatedAt != nil {
			created := *v.CreatedAt
			snap.CreatedAt = &created
		}
		snaps = append(snaps, snap)
		if len(snaps) >= a.cfg.MaxVideos {
			break
		}
	}
	return snaps
}

func (a *Adapter) pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("scrape backoff interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func clamp(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
