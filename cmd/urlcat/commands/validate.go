package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/urlcat/pkg/config"
	"github.com/openfroyo/urlcat/pkg/policy"
)

// validation is the machine-readable result of the validate command.
type validation struct {
	Valid      bool                     `json:"valid"`
	Invocation *config.Invocation       `json:"invocation,omitempty"`
	Violations []policy.PolicyViolation `json:"violations,omitempty"`
	Warnings   []policy.PolicyViolation `json:"warnings,omitempty"`
}

func newValidateCommand(opts *globalOptions) *cobra.Command {
	flags := &invocationFlags{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the invocation without contacting the device",
		Long: `Validate the invocation built from the config file, environment and flags.

This command checks:
  - CUE, YAML or JSON syntax
  - Schema conformance (#Invocation)
  - Field constraints such as state, type and port ranges
  - The url_script, when present
  - Guard-rail policies (OPA/Rego)

The device is never contacted.`,
		Example: `  # Validate a config file
  urlcat validate -c blocked.cue

  # Validate with an extra policy directory
  urlcat validate -c blocked.yaml --policy-dir ./policies --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			local := *opts
			local.noHistory = true
			a, err := newApp(ctx, &local, nil)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			inv, err := a.load(ctx, cmd, flags)
			if err != nil {
				return err
			}
			desired := inv.DesiredState()
			if err := desired.Validate(); err != nil {
				return err
			}

			input := policy.NewPolicyInput(desired, inv.Scope())
			input.Context.User = opts.actor
			input.Context.DryRun = true
			result, checkErr := a.policies.Check(ctx, input)

			res := validation{Valid: checkErr == nil}
			if checkErr == nil {
				redacted := inv.Redacted()
				res.Invocation = &redacted
			}
			if result != nil {
				res.Violations = result.Violations
				res.Warnings = result.Warnings
			}

			if opts.jsonOutput {
				if err := writeJSON(out, res); err != nil {
					return err
				}
				return checkErr
			}

			for _, v := range res.Violations {
				fmt.Fprintf(out, "violation: %s\n", v.String())
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w.String())
			}
			if checkErr != nil {
				return checkErr
			}
			fmt.Fprintf(out, "%s [%s]: valid (%s, %d urls)\n", inv.Name, inv.Scope(), inv.State, len(inv.URLValue))
			return nil
		},
	}

	flags.bindObject(cmd.Flags())
	flags.bindProvider(cmd.Flags())
	return cmd
}
