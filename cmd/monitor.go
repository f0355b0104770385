package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesweston/viral-monitor/internal/monitor"
	"github.com/jamesweston/viral-monitor/internal/registry"
	"github.com/jamesweston/viral-monitor/internal/scrape"
	"github.com/jamesweston/viral-monitor/internal/scrape/tiktok"
)

// newMonitorCmd creates the 'monitor' subcommand, which runs the cycle
// loop until interrupted.
func newMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Starts the monitoring loop",
		Long: `Runs monitoring cycles indefinitely: every cycle scrapes the
configured accounts with bounded concurrency, stores the snapshots, and
dispatches viral alerts. Stops cleanly on SIGINT/SIGTERM.`,

		RunE: runMonitorCommand,
	}
}

func runMonitorCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scrapePolicy := monitor.NewRetryPolicy(cfg.Scrape.MaxRetries, cfg.BackoffInitial(), cfg.BackoffMax())
	adapter := scrape.NewAdapter(
		tiktok.NewScraper(logger),
		scrapePolicy,
		appInstance.Clock(),
		scrape.Config{
			AttemptTimeout: cfg.ScrapeTimeout(),
			MaxVideos:      cfg.Monitor.MaxVideos,
		},
		logger,
	)

	orch := monitor.NewOrchestrator(
		registry.New(cfg.Accounts.File, logger),
		adapter,
		appInstance.Repo(),
		appInstance.Notifier(),
		appInstance.Governor(),
		appInstance.Clock(),
		monitor.OrchestratorConfig{
			CycleInterval:  cfg.CycleInterval(),
			ViralThreshold: int64(cfg.Monitor.ViralThreshold),
			MaxConcurrent:  cfg.Monitor.MaxConcurrent,
			AccountDelay:   cfg.AccountDelay(),
			StatusEvery:    cfg.Monitor.StatusEvery,
		},
		logger,
	)

	go appInstance.Governor().Run(ctx)

	if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run monitor: %w", err)
	}
	return nil
}
