package ssh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/urlcat/pkg/engine"
)

// Session manages custom URL categories in one scope through the CLI.
// It implements engine.Session.
type Session struct {
	shell        Shell
	scope        engine.Scope
	pollInterval time.Duration
	logger       zerolog.Logger
}

var _ engine.Session = (*Session)(nil)

// Open connects to the device described by config.
func Open(ctx context.Context, config *Config, logger zerolog.Logger) (*Session, error) {
	client, err := NewSSHClient(config, logger)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return NewSession(client, config.Scope, config.JobPollInterval, logger), nil
}

// NewSession binds shell to scope.
func NewSession(shell Shell, scope engine.Scope, pollInterval time.Duration, logger zerolog.Logger) *Session {
	return &Session{
		shell:        shell,
		scope:        scope,
		pollInterval: pollInterval,
		logger:       logger.With().Str("component", "ssh").Str("scope", scope.String()).Logger(),
	}
}

// Scope returns the parent scope of every operation.
func (s *Session) Scope() engine.Scope {
	return s.scope
}

// Close closes the underlying shell.
func (s *Session) Close() error {
	return s.shell.Close()
}

// List returns every custom URL category in the candidate configuration.
func (s *Session) List(ctx context.Context) ([]engine.CustomURLCategory, error) {
	output, err := s.run(ctx, configureScript(ShowCommand(s.scope)))
	if err != nil {
		return nil, err
	}
	listing, err := ParseListing(output)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int("count", len(listing)).Msg("Fetched listing")
	return listing, nil
}

// Create adds obj with every field set.
func (s *Session) Create(ctx context.Context, obj engine.CustomURLCategory) error {
	_, err := s.run(ctx, configureScript(SetCommand(s.scope, obj)))
	return err
}

// Update replaces the named category. Set merges list members on PAN-OS, so
// the entry is deleted and re-created in the same candidate configuration.
// If the device rejects the new entry, the entry read beforehand is set
// again so the candidate configuration does not keep the deletion.
func (s *Session) Update(ctx context.Context, obj engine.CustomURLCategory) error {
	original, err := s.find(ctx, obj.Name)
	if err != nil {
		return err
	}

	_, err = s.run(ctx, configureScript(
		DeleteCommand(s.scope, obj.Name),
		SetCommand(s.scope, obj),
	))
	var cliErr *CLIError
	if err == nil || original == nil || !errors.As(err, &cliErr) {
		return err
	}

	if _, rerr := s.run(ctx, configureScript(SetCommand(s.scope, *original))); rerr != nil {
		s.logger.Error().Err(rerr).Str("name", obj.Name).Msg("Failed to restore category after rejected update")
		return &UpdateError{Name: obj.Name, Err: err, RestoreErr: rerr}
	}
	s.logger.Warn().Str("name", obj.Name).Msg("Update rejected; previous entry restored")
	return &UpdateError{Name: obj.Name, Err: err, Restored: true}
}

// find returns the named category from the candidate configuration, or nil.
func (s *Session) find(ctx context.Context, name string) (*engine.CustomURLCategory, error) {
	listing, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range listing {
		if listing[i].Name == name {
			return &listing[i], nil
		}
	}
	return nil, nil
}

// Delete removes the named category.
func (s *Session) Delete(ctx context.Context, name string) error {
	_, err := s.run(ctx, configureScript(DeleteCommand(s.scope, name)))
	return err
}

// Commit commits the candidate configuration. A device-group scope also
// pushes to its group with commit-all and waits for that job.
func (s *Session) Commit(ctx context.Context, opts engine.CommitOptions) (*engine.CommitResult, error) {
	start := time.Now()

	output, err := s.run(ctx, configureScript(CommitCommand(opts.Description)))
	if err != nil {
		return nil, err
	}
	result := &engine.CommitResult{
		JobID:    parseJobID(output),
		Messages: summaryLines(output),
	}

	deviceGroup := opts.DeviceGroup
	if deviceGroup == "" && s.scope.IsPanorama() {
		deviceGroup = s.scope.DeviceGroup
	}
	if deviceGroup != "" && deviceGroup != engine.SharedDeviceGroup {
		output, err := s.run(ctx, opScript(CommitAllCommand(deviceGroup)))
		if err != nil {
			return nil, err
		}
		result.PushJobID = parseJobID(output)
		if result.PushJobID != "" {
			if err := s.waitForJob(ctx, result.PushJobID); err != nil {
				return nil, err
			}
		}
	}

	result.Duration = time.Since(start)
	s.logger.Info().
		Str("job_id", result.JobID).
		Str("push_job_id", result.PushJobID).
		Dur("duration", result.Duration).
		Msg("Commit completed")
	return result, nil
}

func (s *Session) waitForJob(ctx context.Context, jobID string) error {
	for {
		output, err := s.run(ctx, opScript(JobCommand(jobID)))
		if err != nil {
			return err
		}
		status, result, err := jobStatus(output, jobID)
		if err != nil {
			return err
		}
		if status == "FIN" {
			if result == "FAIL" {
				return fmt.Errorf("job %s failed", jobID)
			}
			return nil
		}

		timer := time.NewTimer(s.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &TransportError{Op: "job", Err: ctx.Err(), IsTemporary: true}
		case <-timer.C:
		}
	}
}

// run executes lines and converts CLI failure output into an error.
func (s *Session) run(ctx context.Context, lines []string) (string, error) {
	output, err := s.shell.RunScript(ctx, lines)
	if err != nil {
		return output, err
	}
	if err := checkOutput(output); err != nil {
		return output, err
	}
	return output, nil
}

// summaryLines keeps the device's commit messages, dropping prompts and echo.
func summaryLines(output string) []string {
	var out []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if line == "" || strings.HasSuffix(line, ">") || strings.HasSuffix(line, "#") || strings.Contains(line, "# ") || strings.Contains(line, "> ") {
			continue
		}
		out = append(out, line)
	}
	return out
}
