package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/urlcat/pkg/engine"
	"github.com/openfroyo/urlcat/pkg/stores"
)

func newHistoryCommand(opts *globalOptions) *cobra.Command {
	var (
		name   string
		status string
		limit  int
		prune  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs, or the timeline of one run",
		Long: `Show the run history kept in the local SQLite database.

Without arguments, recent runs are listed newest first. With a run ID, the
run's event timeline is printed.`,
		Example: `  # Recent runs
  urlcat history

  # Failed runs for one object
  urlcat history --name blocked --status failed

  # Drop runs older than 30 days
  urlcat history --prune 720h

  # Timeline of a run
  urlcat history 2f0c1e9a-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			store, err := openStore(ctx, opts.dbPath)
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer store.Close()

			if prune > 0 {
				removed, err := store.DeleteRunsBefore(ctx, time.Now().Add(-prune))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "pruned %d runs\n", removed)
				return nil
			}

			if len(args) == 1 {
				runID := args[0]
				if _, err := store.GetRun(ctx, runID); err != nil {
					return err
				}
				events, err := store.GetEvents(ctx, &runID, nil, 0, 0)
				if err != nil {
					return err
				}
				return writeEvents(out, events, opts.jsonOutput)
			}

			runs, err := store.ListRuns(ctx, stores.RunFilter{
				Name:   name,
				Status: engine.RunStatus(status),
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			return writeRuns(out, runs, opts.jsonOutput)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "only runs for this object")
	cmd.Flags().StringVar(&status, "status", "", "only runs with this status: succeeded, failed, partial")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete runs older than this instead of listing")
	return cmd
}
