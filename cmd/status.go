package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// newStatusCmd creates the 'status' subcommand, which prints per-account
// monitoring counters from the store.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Prints per-account monitoring statistics",
		Long: `Reads the accumulated monitoring counters from the store and prints
one row per account: scrape totals, videos seen, alerts sent, errors,
and the time of the last successful sample.`,

		RunE: runStatusCommand,
	}
}

func runStatusCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	stats, err := appInstance.Repo().ListStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("list monitoring stats: %w", err)
	}
	if len(stats) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No monitoring activity recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tSCRAPES\tVIDEOS\tALERTS\tERRORS\tLAST SAMPLE\tLAST ERROR")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			s.Username,
			s.TotalScrapes,
			s.VideosSeen,
			s.AlertsSent,
			s.ErrorCount,
			formatStatTime(s.LastSampledAt),
			formatStatError(s.LastError),
		)
	}
	return w.Flush()
}

func formatStatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatStatError(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
