package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/urlcat/pkg/config"
	"github.com/openfroyo/urlcat/pkg/runner"
)

func newWatchCommand(opts *globalOptions, opener runner.Opener) *cobra.Command {
	var debounce time.Duration
	flags := &invocationFlags{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-apply whenever the config file or policies change",
		Long: `Apply the invocation, then apply it again every time the config file or a
policy directory changes, until interrupted.

Runs never overlap: changes made while a run is in progress are coalesced into
one follow-up run. Failures are reported and watching continues. Use
--metrics-addr to expose Prometheus metrics while watching.`,
		Example: `  # Keep a firewall in sync with a file
  urlcat watch -c blocked.yaml --commit

  # Watch with policies and metrics
  urlcat watch -c blocked.yaml --policy-dir ./policies --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if opts.configPath == "" {
				return fmt.Errorf("watch requires --config")
			}

			a, err := newApp(ctx, opts, opener)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			log := a.telemetry.Logger.NewComponentLogger("watch")
			addr, err := a.telemetry.StartMetricsServer(ctx)
			if err != nil {
				return err
			}
			if addr != nil {
				log.WithField("address", addr.String()).Info("Serving metrics")
			}

			// Only the first policy directory is reloaded on change.
			policyDir := ""
			if len(opts.policyDirs) > 0 {
				policyDir = opts.policyDirs[0]
			}

			out := cmd.OutOrStdout()
			return a.runner.Watch(ctx, runner.WatchOptions{
				ConfigPath: opts.configPath,
				PolicyDir:  policyDir,
				Debounce:   debounce,
				Load: func(ctx context.Context) (*config.Invocation, error) {
					return a.load(ctx, cmd, flags)
				},
				OnReport: func(trigger string, report *runner.Report, err error) {
					if report == nil {
						fmt.Fprintf(out, "error: %v\n", err)
						return
					}
					if werr := writeReport(out, report, opts.jsonOutput); werr != nil {
						log.WithError(werr).Warn("Failed to write report")
					}
				},
			})
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "how long changes must settle before a run")
	flags.bindObject(cmd.Flags())
	flags.bindProvider(cmd.Flags())
	flags.bindCheck(cmd.Flags())
	return cmd
}
