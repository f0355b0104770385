package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/jamesweston/viral-monitor/internal/metrics"
	"github.com/jamesweston/viral-monitor/internal/registry"
	"github.com/jamesweston/viral-monitor/internal/store"
)

// AccountSource yields the validated accounts to monitor. Loading happens
// once at startup; the list is immutable for the process lifetime.
type AccountSource interface {
	Load() ([]registry.Account, error)
}

// StatusNotifier is optionally implemented by notifiers that can carry
// plain status messages in addition to viral alerts.
type StatusNotifier interface {
	SendText(ctx context.Context, text string) error
}

// OrchestratorConfig controls the cycle loop.
type OrchestratorConfig struct {
	// CycleInterval is the target spacing between cycle starts.
	CycleInterval time.Duration
	// ViralThreshold is the view delta that triggers an alert.
	ViralThreshold int64
	// MaxConcurrent bounds simultaneous account scrapes.
	MaxConcurrent int
	// AccountDelay staggers account launches within a cycle.
	AccountDelay time.Duration
	// StatusEvery logs an aggregate status line every N cycles.
	StatusEvery int
}

func (c *OrchestratorConfig) applyDefaults() {
	if c.CycleInterval <= 0 {
		c.CycleInterval = 5 * time.Minute
	}
	if c.ViralThreshold <= 0 {
		c.ViralThreshold = DefaultViralThreshold
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 2
	}
	if c.StatusEvery <= 0 {
		c.StatusEvery = 5
	}
}

// Orchestrator drives the monitoring loop: it iterates accounts with
// bounded concurrency, feeds samples through the detector and the store,
// dispatches alerts, and sleeps between cycles. One account's failure
// never aborts the cycle or the process.
type Orchestrator struct {
	source   AccountSource
	fetcher  AccountFetcher
	repo     store.SnapshotRepository
	notifier Notifier
	governor ResourceGovernor
	clock    Clock
	cfg      OrchestratorConfig
	logger   *zap.Logger

	mu       sync.Mutex
	degraded map[string]struct{}
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(
	source AccountSource,
	fetcher AccountFetcher,
	repo store.SnapshotRepository,
	notifier Notifier,
	governor ResourceGovernor,
	clock Clock,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		source:   source,
		fetcher:  fetcher,
		repo:     repo,
		notifier: notifier,
		governor: governor,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
		degraded: make(map[string]struct{}),
	}
}

// Run executes monitoring cycles until the context is canceled. A failing
// account list is the only startup error that stops the process.
func (o *Orchestrator) Run(ctx context.Context) error {
	accounts, err := o.source.Load()
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}

	o.logger.Info("Viral monitor started",
		zap.Int("accounts", len(accounts)),
		zap.Duration("interval", o.cfg.CycleInterval),
		zap.Int64("threshold", o.cfg.ViralThreshold),
		zap.Int("max_concurrent", o.cfg.MaxConcurrent),
	)
	o.sendStartupNotice(ctx, len(accounts))

	cycle := 0
	for {
		cycleStart := o.clock.Now()
		o.runCycle(ctx, accounts)
		if ctx.Err() != nil {
			break
		}
		metrics.ObserveCycle()
		cycle++
		if cycle%o.cfg.StatusEvery == 0 {
			o.logStatus(ctx)
		}
		if o.governor != nil && o.governor.Check() == ResourceOverLimit {
			o.governor.Cleanup()
		}
		if err := o.sleepUntilNextCycle(ctx, cycleStart); err != nil {
			break
		}
	}

	if o.governor != nil {
		o.governor.Cleanup()
	}
	o.logger.Info("Viral monitor stopped")
	return nil
}

// runCycle processes every account once. Workers are bounded by a
// weighted semaphore; resource pressure mid-cycle shrinks the effective
// width for the remainder of the cycle.
func (o *Orchestrator) runCycle(ctx context.Context, accounts []registry.Account) {
	o.logger.Info("Starting scrape cycle", zap.Int("accounts", len(accounts)))

	sem := semaphore.NewWeighted(int64(o.cfg.MaxConcurrent))
	limiter := o.newAccountLimiter()
	var wg sync.WaitGroup
	shrunk := false

	for _, account := range accounts {
		if ctx.Err() != nil {
			break
		}
		if o.isDegraded(account.Handle) {
			continue
		}
		if !shrunk && o.governor != nil && o.governor.Check() == ResourceOverLimit {
			o.governor.Cleanup()
			// Hold one slot for the rest of the cycle; effective width
			// drops by one but never below one.
			if o.cfg.MaxConcurrent > 1 && sem.TryAcquire(1) {
				defer sem.Release(1)
			}
			shrunk = true
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(handle string) {
			defer wg.Done()
			defer sem.Release(1)
			o.processAccount(ctx, handle)
		}(account.Handle)
	}

	wg.Wait()
	o.logger.Info("Scrape cycle completed")
}

// processAccount scrapes one account and feeds the results through the
// detector and the store. Writes use a context detached from shutdown so
// an in-flight account finishes cleanly instead of leaving partial state.
func (o *Orchestrator) processAccount(ctx context.Context, handle string) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	snaps, err := o.fetcher.FetchAccountVideos(ctx, handle)
	writeCtx := context.WithoutCancel(ctx)
	now := o.clock.Now()

	if err != nil {
		// A scrape interrupted by shutdown is not an account failure;
		// recording it would inflate error_count with cancellation noise.
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			o.logger.Info("Scrape interrupted by shutdown", zap.String("handle", handle))
			return
		}
		metrics.ObserveScrape(handle, "error")
		o.handleScrapeFailure(writeCtx, handle, now, err)
		return
	}
	metrics.ObserveScrape(handle, "success")
	metrics.ObserveVideosSeen(handle, len(snaps))

	var firstStoreErr error
	alerts := 0
	for _, snap := range snaps {
		event, ok, err := o.processVideo(writeCtx, snap)
		if err != nil {
			if firstStoreErr == nil {
				firstStoreErr = err
			}
			o.logger.Error("Persisting snapshot failed",
				zap.String("handle", handle),
				zap.String("video_id", snap.VideoID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			o.dispatchAlert(writeCtx, event)
			alerts++
		}
	}

	result := store.CycleResult{Username: handle, VideosFound: len(snaps), At: now}
	if firstStoreErr != nil {
		result.Err = firstStoreErr.Error()
	}
	if err := o.repo.RecordCycleResult(writeCtx, result); err != nil {
		o.logger.Error("Recording cycle result failed", zap.String("handle", handle), zap.Error(err))
	}

	o.logger.Info("Account processed",
		zap.String("handle", handle),
		zap.Int("videos", len(snaps)),
		zap.Int("viral", alerts),
	)
}

// processVideo applies the read-before-write ordering: the previous
// counters are snapshot-read before the upsert that overwrites them.
func (o *Orchestrator) processVideo(ctx context.Context, snap store.VideoSnapshot) (ViralEvent, bool, error) {
	var previous *store.VideoSnapshot
	prev, err := o.repo.GetPrevious(ctx, snap.Username, snap.VideoID)
	switch {
	case err == nil:
		previous = &prev
	case errors.Is(err, store.ErrNotFound):
		// First sighting, no baseline.
	default:
		return ViralEvent{}, false, err
	}

	if _, err := o.repo.UpsertSnapshot(ctx, snap); err != nil {
		return ViralEvent{}, false, err
	}

	event, ok := Detect(previous, snap, o.cfg.ViralThreshold, o.clock.Now())
	return event, ok, nil
}

// dispatchAlert sends the event and records the send. Notification
// failures are logged and swallowed; they never feed back into the
// scrape pipeline.
func (o *Orchestrator) dispatchAlert(ctx context.Context, event ViralEvent) {
	if err := o.notifier.Send(ctx, event); err != nil {
		o.logger.Error("Sending viral alert failed",
			zap.String("handle", event.Username),
			zap.String("video_id", event.VideoID),
			zap.Error(err),
		)
		return
	}
	metrics.ObserveViralAlert(event.Username)
	if err := o.repo.RecordAlertSent(ctx, event.Username, event.DetectedAt); err != nil {
		o.logger.Error("Recording alert failed", zap.String("handle", event.Username), zap.Error(err))
	}
	o.logger.Info("Viral alert sent",
		zap.String("handle", event.Username),
		zap.String("video_id", event.VideoID),
		zap.Int64("delta", event.Delta),
	)
}

func (o *Orchestrator) handleScrapeFailure(writeCtx context.Context, handle string, at time.Time, err error) {
	var scrapeErr *ScrapeError
	if errors.As(err, &scrapeErr) && !scrapeErr.Recoverable() {
		o.markDegraded(handle)
		o.logger.Error("Account marked degraded; skipping in future cycles",
			zap.String("handle", handle),
			zap.Error(err),
		)
	} else {
		o.logger.Warn("Scrape failed; will retry next cycle",
			zap.String("handle", handle),
			zap.Error(err),
		)
	}
	res := store.CycleResult{Username: handle, Err: err.Error(), At: at}
	if recErr := o.repo.RecordCycleResult(writeCtx, res); recErr != nil {
		o.logger.Error("Recording cycle error failed", zap.String("handle", handle), zap.Error(recErr))
	}
}

// sleepUntilNextCycle sleeps out the remainder of the interval, waking
// immediately on shutdown. Overrunning cycles log a warning and start the
// next cycle at once.
func (o *Orchestrator) sleepUntilNextCycle(ctx context.Context, cycleStart time.Time) error {
	elapsed := o.clock.Now().Sub(cycleStart)
	remaining := o.cfg.CycleInterval - elapsed
	if remaining <= 0 {
		o.logger.Warn("Cycle overran the interval",
			zap.Duration("elapsed", elapsed),
			zap.Duration("interval", o.cfg.CycleInterval),
		)
		return ctx.Err()
	}
	o.logger.Info("Sleeping until next cycle", zap.Duration("sleep", remaining))
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (o *Orchestrator) newAccountLimiter() *rate.Limiter {
	if o.cfg.AccountDelay <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(o.cfg.AccountDelay), 1)
}

func (o *Orchestrator) isDegraded(handle string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.degraded[handle]
	return ok
}

func (o *Orchestrator) markDegraded(handle string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.degraded[handle] = struct{}{}
}

func (o *Orchestrator) sendStartupNotice(ctx context.Context, accounts int) {
	sn, ok := o.notifier.(StatusNotifier)
	if !ok {
		return
	}
	text := fmt.Sprintf(
		"🤖 Viral monitor started\nAccounts: %d\nInterval: %s\nThreshold: %d views",
		accounts, o.cfg.CycleInterval, o.cfg.ViralThreshold,
	)
	if err := sn.SendText(ctx, text); err != nil {
		o.logger.Warn("Startup notice failed", zap.Error(err))
	}
}

func (o *Orchestrator) logStatus(ctx context.Context) {
	stats, err := o.repo.ListStats(ctx)
	if err != nil {
		o.logger.Warn("Loading monitoring stats failed", zap.Error(err))
		return
	}
	var scrapes, videos, alerts, errCount int64
	for _, s := range stats {
		scrapes += s.TotalScrapes
		videos += s.VideosSeen
		alerts += s.AlertsSent
		errCount += s.ErrorCount
	}
	o.logger.Info("Monitoring status",
		zap.Int("accounts", len(stats)),
		zap.Int64("total_scrapes", scrapes),
		zap.Int64("videos_found", videos),
		zap.Int64("viral_alerts", alerts),
		zap.Int64("errors", errCount),
	)
}
