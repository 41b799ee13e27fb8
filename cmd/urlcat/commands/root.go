package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/urlcat/pkg/engine"
	"github.com/openfroyo/urlcat/pkg/runner"
)

// Exit codes reported by the urlcat binary.
const (
	exitFailure       = 1
	exitInvalidSpec   = 2
	exitDeviceFailure = 3
	exitCommitFailure = 4
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath    string
	jsonOutput    bool
	logLevel      string
	logFormat     string
	dbPath        string
	noHistory     bool
	policyDirs    []string
	disablePolicy []string
	actor         string
	timeout       time.Duration
	traceExporter string
	traceEndpoint string
	metricsAddr   string

	version string
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case engine.IsInvalidSpecification(err):
		return exitInvalidSpec
	case engine.IsCommitError(err):
		return exitCommitFailure
	case engine.IsDeviceCommunication(err):
		return exitDeviceFailure
	default:
		return exitFailure
	}
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	return newRootCommandWithOpener(version, commit, buildDate, nil)
}

// newRootCommandWithOpener builds the command tree; opener replaces the device
// connection when non-nil.
func newRootCommandWithOpener(version, commit, buildDate string, opener runner.Opener) *cobra.Command {
	opts := &globalOptions{version: version}

	rootCmd := &cobra.Command{
		Use:   "urlcat",
		Short: "urlcat - PAN-OS custom URL category reconciler",
		Long: `urlcat keeps one custom URL category on a PAN-OS firewall or Panorama
in the state you declare.

Each invocation fetches the current listing once, creates, updates or deletes
the named object when it differs, and optionally commits the candidate
configuration. Nothing changes when the device already matches.

Features:
  - Typed configs via CUE, YAML or JSON
  - Starlark url_script for generated member lists
  - XML API and SSH transports
  - Guard-rail policies via OPA/Rego
  - Local run history in SQLite`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file path (.cue, .yaml, .yml or .json)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (default $LOG_LEVEL or info)")
	flags.StringVar(&opts.logFormat, "log-format", "console", "log format: console or json")
	flags.StringVar(&opts.dbPath, "db", defaultDBPath(), "run history database path (empty disables history)")
	flags.BoolVar(&opts.noHistory, "no-history", false, "do not record runs in the history database")
	flags.StringSliceVar(&opts.policyDirs, "policy-dir", nil, "directory or file of additional .rego/.json policies")
	flags.StringSliceVar(&opts.disablePolicy, "disable-policy", nil, "built-in or loaded policy to disable")
	flags.StringVar(&opts.actor, "actor", "", "identity recorded in the audit trail (default provider username)")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "upper bound for one invocation")
	flags.StringVar(&opts.traceExporter, "trace-exporter", "none", "trace exporter: none, stdout or otlp")
	flags.StringVar(&opts.traceEndpoint, "trace-endpoint", "", "OTLP gRPC endpoint for traces")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (watch mode)")

	rootCmd.AddCommand(newApplyCommand(opts, opener))
	rootCmd.AddCommand(newPlanCommand(opts, opener))
	rootCmd.AddCommand(newListCommand(opts, opener))
	rootCmd.AddCommand(newValidateCommand(opts))
	rootCmd.AddCommand(newWatchCommand(opts, opener))
	rootCmd.AddCommand(newHistoryCommand(opts))
	rootCmd.AddCommand(newInitCommand(opts))

	return rootCmd
}
