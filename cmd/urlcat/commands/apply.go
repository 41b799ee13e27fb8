package commands

import (
	"github.com/spf13/cobra"

	"github.com/openfroyo/urlcat/pkg/runner"
)

func newApplyCommand(opts *globalOptions, opener runner.Opener) *cobra.Command {
	return newReconcileCommand(opts, opener, false)
}

// newReconcileCommand builds apply, or plan when forceCheck is set.
func newReconcileCommand(opts *globalOptions, opener runner.Opener, forceCheck bool) *cobra.Command {
	flags := &invocationFlags{}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Reconcile the custom URL category on the device",
		Long: `Reconcile one custom URL category against the device.

The current listing is fetched once. When the named object is missing, differs
or must be removed, exactly one create, update or delete is issued. With
--commit, the candidate configuration is committed after a change.

Parameters come from the config file, then PANOS_* environment variables,
then flags; later sources win.`,
		Example: `  # Apply a config file
  urlcat apply -c blocked.yaml

  # Declare everything on the command line and commit
  urlcat apply --hostname fw1 --api-key $KEY --name blocked \
    --url-value bad.example.com --url-value worse.example.com --commit

  # Remove the object from a Panorama device group
  urlcat apply -c blocked.yaml --state absent --device-group branch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, opts, opener)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			inv, err := a.load(ctx, cmd, flags)
			if err != nil {
				return err
			}
			if forceCheck {
				inv.Check = true
			}

			report, runErr := a.runner.Run(ctx, inv)
			if err := writeReport(cmd.OutOrStdout(), report, opts.jsonOutput); err != nil {
				return err
			}
			return runErr
		},
	}

	flags.bindObject(cmd.Flags())
	flags.bindProvider(cmd.Flags())
	if !forceCheck {
		flags.bindCheck(cmd.Flags())
	}

	return cmd
}
