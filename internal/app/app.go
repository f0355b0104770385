// Package app initializes and holds long-lived application services,
// acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jamesweston/viral-monitor/internal/clock/system"
	"github.com/jamesweston/viral-monitor/internal/config"
	"github.com/jamesweston/viral-monitor/internal/governor"
	"github.com/jamesweston/viral-monitor/internal/logging"
	"github.com/jamesweston/viral-monitor/internal/metrics"
	"github.com/jamesweston/viral-monitor/internal/monitor"
	"github.com/jamesweston/viral-monitor/internal/notify"
	"github.com/jamesweston/viral-monitor/internal/storage/memory"
	"github.com/jamesweston/viral-monitor/internal/storage/postgres"
	"github.com/jamesweston/viral-monitor/internal/store"
)

// App holds the shared, long-lived services for the monitor process. It
// is initialized once at startup and passed to the commands that need it.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	repo       store.SnapshotRepository
	notifier   monitor.Notifier
	governor   *governor.Governor
	clock      monitor.Clock
	metricsSrv *http.Server
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger instance.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Repo exposes the configured snapshot repository.
func (a *App) Repo() store.SnapshotRepository {
	return a.repo
}

// Notifier returns the alert delivery collaborator.
func (a *App) Notifier() monitor.Notifier {
	return a.notifier
}

// Governor returns the resource governor.
func (a *App) Governor() *governor.Governor {
	return a.governor
}

// Clock returns the shared clock.
func (a *App) Clock() monitor.Clock {
	return a.clock
}

// New creates and initializes an App from the configuration at cfgPath.
// It is the central point for service initialization and fails fast if
// any critical service cannot be built.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	metrics.Init()
	clk := system.New()
	storePolicy := monitor.NewRetryPolicy(cfg.Scrape.MaxRetries, cfg.BackoffInitial(), cfg.BackoffMax())

	var repo store.SnapshotRepository
	switch cfg.DB.Provider {
	case "postgres":
		logger.Info("Connecting to PostgreSQL")
		pg, err := postgres.NewSnapshotStore(ctx, cfg.DB.DSN, storePolicy, clk, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize snapshot store: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		repo = pg
	case "memory":
		logger.Info("Using in-memory snapshot store; data will not survive restarts")
		repo = memory.NewSnapshotStore()
	default:
		return nil, fmt.Errorf("unknown db provider: %s", cfg.DB.Provider)
	}

	var notifier monitor.Notifier
	if cfg.Telegram.Enabled {
		logger.Info("Using Telegram alert delivery")
		notifier = notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	} else {
		logger.Info("Telegram disabled; alerts will be logged only")
		notifier = notify.NewLog(logger)
	}

	gov, err := governor.New(governor.Config{
		MaxMemoryMB:    cfg.Resources.MaxMemoryMB,
		SampleInterval: cfg.ResourceSampleInterval(),
	}, logger)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("initialize resource governor: %w", err)
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		notifier: notifier,
		governor: gov,
		clock:    clk,
	}
	a.startMetricsServer()

	logger.Info("Application services initialized")
	return a, nil
}

func (a *App) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.metricsSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("Starting metrics server", zap.Int("port", a.cfg.Metrics.Port))
		if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
}

// Close gracefully shuts down all services in the App container.
func (a *App) Close() {
	a.logger.Info("Shutting down application services")
	if a.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsSrv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("Error stopping metrics server", zap.Error(err))
		}
	}
	a.repo.Close()

	// Best-effort flush; logging itself might be failing here.
	_ = a.logger.Sync()
}
