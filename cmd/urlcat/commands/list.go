package commands

import (
	"github.com/spf13/cobra"

	"github.com/openfroyo/urlcat/pkg/runner"
)

func newListCommand(opts *globalOptions, opener runner.Opener) *cobra.Command {
	flags := &invocationFlags{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the custom URL categories of a scope",
		Long: `Fetch and print every custom URL category in the vsys, device group or
shared scope selected by the config file and flags. Nothing is modified.`,
		Example: `  # List the default vsys of a firewall
  urlcat list --hostname fw1 --api-key $KEY

  # List a Panorama device group as JSON
  urlcat list -c panorama.yaml --device-group branch --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, opts, opener)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			inv, err := a.loader.LoadConnection(opts.configPath, flags.overrides(cmd))
			if err != nil {
				return err
			}

			listing, err := a.runner.List(ctx, inv)
			if err != nil {
				return err
			}
			return writeListing(cmd.OutOrStdout(), listing, opts.jsonOutput)
		},
	}

	flags.bindProvider(cmd.Flags())
	return cmd
}
