// Package governor tracks process resource usage and forces cleanup
// passes when the configured ceiling is exceeded.
package governor

import (
	"context"
	"os"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"

	"github.com/jamesweston/viral-monitor/internal/metrics"
	"github.com/jamesweston/viral-monitor/internal/monitor"
)

// Config controls Governor behavior.
type Config struct {
	// MaxMemoryMB is the RSS ceiling; zero disables the limit.
	MaxMemoryMB int
	// SampleInterval is how often RSS is re-read, independent of the
	// scrape cycle.
	SampleInterval time.Duration
}

// Governor samples the process RSS on a fixed interval and reports
// whether it exceeds the configured ceiling. It never stops the process;
// callers degrade gracefully on pressure.
type Governor struct {
	proc    *process.Process
	cfg     Config
	logger  *zap.Logger
	lastRSS atomic.Uint64
}

// New constructs a Governor for the current process.
func New(cfg Config, logger *zap.Logger) (*Governor, error) {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = time.Minute
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	g := &Governor{proc: proc, cfg: cfg, logger: logger}
	g.sample()
	return g, nil
}

// Run samples RSS until the context finishes. It is meant to run in its
// own goroutine alongside the orchestrator.
func (g *Governor) Run(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.SampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sample()
		}
	}
}

func (g *Governor) sample() {
	info, err := g.proc.MemoryInfo()
	if err != nil {
		g.logger.Warn("Reading process memory failed", zap.Error(err))
		return
	}
	g.lastRSS.Store(info.RSS)
}

// MemoryUsageMB returns the most recently sampled RSS in megabytes.
func (g *Governor) MemoryUsageMB() float64 {
	return float64(g.lastRSS.Load()) / 1024 / 1024
}

// Check compares the last sample against the ceiling.
func (g *Governor) Check() monitor.ResourceStatus {
	if g.cfg.MaxMemoryMB <= 0 {
		return monitor.ResourceOK
	}
	usage := g.MemoryUsageMB()
	if usage > float64(g.cfg.MaxMemoryMB) {
		g.logger.Warn("Memory usage over limit",
			zap.Float64("usage_mb", usage),
			zap.Int("limit_mb", g.cfg.MaxMemoryMB),
		)
		return monitor.ResourceOverLimit
	}
	return monitor.ResourceOK
}

// Cleanup performs a best-effort memory release and refreshes the sample.
func (g *Governor) Cleanup() {
	runtime.GC()
	debug.FreeOSMemory()
	g.sample()
	metrics.ObserveResourceCleanup()
	g.logger.Info("Forced resource cleanup", zap.Float64("usage_mb", g.MemoryUsageMB()))
}
