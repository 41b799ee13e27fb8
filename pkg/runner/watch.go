package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openfroyo/urlcat/pkg/config"
	"github.com/openfroyo/urlcat/pkg/policy"
	"github.com/openfroyo/urlcat/pkg/telemetry"
)

// Watch triggers.
const (
	TriggerInitial = "initial"
	TriggerConfig  = "config"
	TriggerPolicy  = "policy"
)

// WatchOptions configures Runner.Watch.
type WatchOptions struct {
	// ConfigPath is the invocation file to watch.
	ConfigPath string

	// PolicyDir is an optional directory of policy files. Changes reload the
	// runner's policy engine before the next run.
	PolicyDir string

	// Debounce is how long changes must settle before a run starts.
	Debounce time.Duration

	// Load builds the invocation for each run, typically by re-reading ConfigPath.
	Load func(ctx context.Context) (*config.Invocation, error)

	// OnReport receives every run's outcome. Load failures arrive with a nil report.
	OnReport func(trigger string, report *Report, err error)
}

// Watch runs the invocation once, then again whenever the config file or
// policy directory changes, until ctx is cancelled. Runs never overlap;
// changes arriving during a run coalesce into one follow-up run.
func (r *Runner) Watch(ctx context.Context, opts WatchOptions) error {
	if opts.Load == nil {
		return fmt.Errorf("watch requires a load function")
	}
	if opts.ConfigPath == "" {
		return fmt.Errorf("watch requires a config file")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	log := r.logger.WithField("config", opts.ConfigPath)

	triggers := make(chan string, 1)
	trigger := func(reason string) {
		select {
		case triggers <- reason:
		default:
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files by rename, so watch the directory and filter.
	configPath, err := filepath.Abs(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(configPath), err)
	}
	go watchConfig(ctx, watcher, configPath, opts.Debounce, func() { trigger(TriggerConfig) }, log)

	if opts.PolicyDir != "" && r.policies != nil {
		loader := policy.NewLoader(log.Zerolog())
		loader.SetDebounce(opts.Debounce)
		err := loader.Watch(ctx, []string{opts.PolicyDir}, func(policies []policy.Policy) error {
			if err := r.policies.ReloadPolicies(ctx, policies); err != nil {
				return err
			}
			trigger(TriggerPolicy)
			return nil
		})
		if err != nil {
			return err
		}
		defer loader.StopWatching()
	}

	log.Info("Watching for changes")
	trigger(TriggerInitial)

	for {
		select {
		case <-ctx.Done():
			log.Info("Watch stopped")
			return nil
		case reason := <-triggers:
			r.telemetry.Metrics.RecordWatchTrigger(reason)
			log.WithField("trigger", reason).Debug("Starting run")

			inv, err := opts.Load(ctx)
			if err != nil {
				log.WithError(err).Error("Failed to load invocation")
				if opts.OnReport != nil {
					opts.OnReport(reason, nil, err)
				}
				continue
			}

			report, err := r.Run(ctx, inv)
			if opts.OnReport != nil {
				opts.OnReport(reason, report, err)
			}
		}
	}
}

func watchConfig(ctx context.Context, watcher *fsnotify.Watcher, path string, debounce time.Duration, fire func(), log *telemetry.Logger) {
	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, fire)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Error("Watcher error")
		}
	}
}
