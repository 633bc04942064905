// -- cmd/history.go --
package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/voidwalk/webgen/internal/history"
	"github.com/voidwalk/webgen/internal/observability"
)

func newHistoryCommand() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the attempt journal.",
	}
	historyCmd.AddCommand(newHistoryFailuresCommand())
	return historyCmd
}

// newHistoryFailuresCommand aggregates recent failures per provider and error
// kind. A provider whose failure count climbs usually means its selector
// profile has rotted and needs re-recording.
func newHistoryFailuresCommand() *cobra.Command {
	var window time.Duration

	failuresCmd := &cobra.Command{
		Use:   "failures",
		Short: "Summarize journaled failures per provider and error kind.",
		Example: `  webgen history failures
  webgen history failures --since 72h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if !cfg.History.Enabled || cfg.History.DSN == "" {
				return fmt.Errorf("attempt journal is not configured (set history.enabled and WEBGEN_HISTORY_DSN)")
			}

			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, cfg.History.DSN)
			if err != nil {
				return fmt.Errorf("connecting attempt journal: %w", err)
			}
			defer pool.Close()

			store, err := history.New(ctx, pool, observability.GetLogger())
			if err != nil {
				return fmt.Errorf("initializing attempt journal: %w", err)
			}

			counts, err := store.RecentFailures(ctx, time.Now().Add(-window))
			if err != nil {
				return err
			}
			reportFailureCounts(cmd.OutOrStdout(), window, counts)
			return nil
		},
	}

	failuresCmd.Flags().DurationVar(&window, "since", 24*time.Hour, "look-back window")
	return failuresCmd
}

func reportFailureCounts(w io.Writer, window time.Duration, counts []history.FailureCount) {
	if len(counts) == 0 {
		fmt.Fprintf(w, "no failures journaled in the last %s\n", window)
		return
	}
	fmt.Fprintf(w, "failures in the last %s:\n", window)
	fmt.Fprintf(w, "  %-24s %-26s %s\n", "PROVIDER", "KIND", "COUNT")
	for _, fc := range counts {
		fmt.Fprintf(w, "  %-24s %-26s %d\n", fc.Provider, fc.Kind, fc.Count)
	}
}
