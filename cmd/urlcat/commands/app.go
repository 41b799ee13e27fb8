package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/urlcat/pkg/config"
	"github.com/openfroyo/urlcat/pkg/policy"
	"github.com/openfroyo/urlcat/pkg/runner"
	"github.com/openfroyo/urlcat/pkg/stores"
	"github.com/openfroyo/urlcat/pkg/telemetry"
)

// app holds the collaborators built from the global flags for one command.
type app struct {
	opts      *globalOptions
	telemetry *telemetry.Telemetry
	policies  *policy.Engine
	store     stores.Store
	loader    *config.Loader
	runner    *runner.Runner
}

// newApp builds telemetry, the policy engine, the history store and a runner.
// opener overrides the device connection, mainly for tests.
func newApp(ctx context.Context, opts *globalOptions, opener runner.Opener) (*app, error) {
	tel, err := telemetry.NewTelemetry(opts.telemetryConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	a := &app{
		opts:      opts,
		telemetry: tel,
		loader:    config.NewLoader(),
	}

	a.policies, err = newPolicyEngine(ctx, opts, tel.Logger.Zerolog())
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	if !opts.noHistory && opts.dbPath != "" {
		a.store, err = openStore(ctx, opts.dbPath)
		if err != nil {
			// History is best effort; the device work must not depend on it.
			tel.Logger.WithError(err).Warn("Run history disabled")
			a.store = nil
		}
	}

	runnerOpts := []runner.Option{
		runner.WithTelemetry(tel),
		runner.WithPolicyEngine(a.policies),
		runner.WithActor(opts.actor),
		runner.WithTimeout(opts.timeout),
	}
	if a.store != nil {
		runnerOpts = append(runnerOpts, runner.WithStore(a.store))
	}
	a.runner = runner.New(opener, runnerOpts...)

	return a, nil
}

func (a *app) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close history store")
		}
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
}

// load builds the invocation from the config file, environment and flags.
func (a *app) load(ctx context.Context, cmd *cobra.Command, flags *invocationFlags) (*config.Invocation, error) {
	return a.loader.Load(ctx, a.opts.configPath, flags.overrides(cmd))
}

func (o *globalOptions) telemetryConfig() *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = o.version
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "dev"
	}

	level := o.logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		level = "info"
	}
	cfg.Logging.Level = level
	zerolog.SetGlobalLevel(telemetry.ParseLevel(level))
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}

	switch o.traceExporter {
	case "", telemetry.ExporterNone:
		cfg.Tracing.Enabled = false
		cfg.Tracing.Exporter = telemetry.ExporterNone
	default:
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = o.traceExporter
		cfg.Tracing.Endpoint = o.traceEndpoint
	}

	cfg.Metrics.ListenAddress = o.metricsAddr
	return cfg
}

func newPolicyEngine(ctx context.Context, opts *globalOptions, logger zerolog.Logger) (*policy.Engine, error) {
	engine, err := policy.NewEngine(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	if len(opts.policyDirs) > 0 {
		if err := engine.LoadPolicies(ctx, opts.policyDirs); err != nil {
			return nil, err
		}
	}

	for _, name := range opts.disablePolicy {
		if err := engine.DisablePolicy(name); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	if path != stores.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
