package commands

import (
	"github.com/spf13/cobra"

	"github.com/openfroyo/urlcat/pkg/runner"
)

func newPlanCommand(opts *globalOptions, opener runner.Opener) *cobra.Command {
	cmd := newReconcileCommand(opts, opener, true)
	cmd.Use = "plan"
	cmd.Short = "Show the change apply would make without issuing it"
	cmd.Long = `Compute the change for one custom URL category without mutating the device.

plan is apply in check mode: the listing is fetched and the diff reported, but
no create, update, delete or commit is sent.`
	cmd.Example = `  # Preview a change
  urlcat plan -c blocked.yaml

  # Machine-readable diff
  urlcat plan -c blocked.yaml --json`
	return cmd
}
