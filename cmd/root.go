// Package cmd defines and implements the CLI commands for the
// viral-monitor executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jamesweston/viral-monitor/internal/app"
	"github.com/jamesweston/viral-monitor/internal/config"
	"github.com/jamesweston/viral-monitor/internal/governor"
	"github.com/jamesweston/viral-monitor/internal/monitor"
	"github.com/jamesweston/viral-monitor/internal/store"
)

var cfgFile string

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application surface commands depend on, so tests can
// inject a mock container.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Repo() store.SnapshotRepository
	Notifier() monitor.Notifier
	Governor() *governor.Governor
	Clock() monitor.Clock
}

// newApp is the application factory. It is a variable so tests can
// replace it with a mock factory.
var newApp = func(ctx context.Context) (App, error) {
	return app.New(ctx, cfgFile)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "viral-monitor",
		Short: "Monitors TikTok accounts and alerts when videos go viral.",
		Long: `viral-monitor periodically samples a set of TikTok accounts, records
each account's video inventory and engagement counters, and raises an
alert when a video's view count crosses the configured delta threshold
since the last sample.`,

		// Runs after flags are parsed but before the subcommand's RunE;
		// builds the service container and injects it into the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	cmd.AddCommand(newMonitorCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
