package runner

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/urlcat/pkg/config"
	"github.com/openfroyo/urlcat/pkg/engine"
	"github.com/openfroyo/urlcat/pkg/policy"
	"github.com/openfroyo/urlcat/pkg/stores"
	"github.com/openfroyo/urlcat/pkg/telemetry"
)

// Report is the outcome of one invocation as shown to the user.
type Report struct {
	// RunID identifies the invocation in the history store.
	RunID string `json:"run_id"`

	// Name is the managed object's name.
	Name string `json:"name"`

	// Scope is the parent scope, rendered for display.
	Scope string `json:"scope"`

	// Changed reports whether the device needed a mutation.
	Changed bool `json:"changed"`

	// Operation is the mutation issued (or that would be issued in check mode).
	Operation engine.OperationType `json:"operation,omitempty"`

	// Diff describes the change; empty when Changed is false.
	Diff engine.Diff `json:"diff"`

	// CheckMode is true when no mutation was issued.
	CheckMode bool `json:"check_mode,omitempty"`

	// Committed is true when a commit completed.
	Committed bool `json:"committed,omitempty"`

	// Commit describes the completed commit.
	Commit *engine.CommitResult `json:"commit,omitempty"`

	// Status is the final run status.
	Status engine.RunStatus `json:"status"`

	// Warnings are non-blocking policy violations.
	Warnings []policy.PolicyViolation `json:"warnings,omitempty"`

	// Duration is the wall time of the invocation.
	Duration time.Duration `json:"duration"`

	// Error is the failure message, if any.
	Error string `json:"error,omitempty"`
}

// Runner executes invocations one at a time: validate, check policies,
// fetch one listing, reconcile, optionally commit, record.
type Runner struct {
	opener    Opener
	policies  *policy.Engine
	store     stores.Store
	telemetry *telemetry.Telemetry
	logger    *telemetry.Logger
	actor     string
	timeout   time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithPolicyEngine evaluates guard-rail policies before contacting the device.
func WithPolicyEngine(e *policy.Engine) Option {
	return func(r *Runner) {
		r.policies = e
	}
}

// WithStore records every invocation in store.
func WithStore(store stores.Store) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithTelemetry sets the logger, tracer and metrics used by the runner.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(r *Runner) {
		r.telemetry = tel
	}
}

// WithActor sets the identity recorded in audit entries and policy input.
func WithActor(actor string) Option {
	return func(r *Runner) {
		r.actor = actor
	}
}

// WithTimeout bounds each invocation when the caller's context has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// New creates a runner that connects to devices with opener.
func New(opener Opener, opts ...Option) *Runner {
	r := &Runner{opener: opener}
	for _, opt := range opts {
		opt(r)
	}
	if r.opener == nil {
		r.opener = OpenSession
	}
	if r.telemetry == nil {
		r.telemetry = telemetry.NewNop()
	}
	r.logger = r.telemetry.Logger.NewComponentLogger("runner")
	return r
}

// Run executes one invocation. The returned report is never nil; on failure
// it carries the status and whatever was done before the error.
func (r *Runner) Run(ctx context.Context, inv *config.Invocation) (*Report, error) {
	timer := telemetry.NewTimer()
	desired := inv.DesiredState()
	scope := inv.Scope()

	report := &Report{
		RunID:     uuid.New().String(),
		Name:      desired.Object.Name,
		Scope:     scope.String(),
		CheckMode: inv.Check,
		Status:    engine.RunStatusRunning,
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	ctx = r.telemetry.WithContext(ctx)
	ctx, span := r.telemetry.Tracer.StartInvocationSpan(ctx, report.RunID, report.Name, report.Scope)
	log := r.logger.WithRunID(report.RunID).WithObject(report.Name, report.Scope)
	ctx = log.WithContext(ctx)

	r.telemetry.Metrics.RecordInvocationStarted()
	rec := r.newRecorder(ctx, inv, report)

	err := r.execute(ctx, inv, desired, report, rec)

	report.Duration = timer.Duration()
	switch {
	case err == nil:
		report.Status = engine.RunStatusSucceeded
	case engine.IsCommitError(err):
		report.Status = engine.RunStatusPartial
	default:
		report.Status = engine.RunStatusFailed
	}
	if err != nil {
		report.Error = err.Error()
		r.telemetry.Metrics.RecordError(engine.ErrorCode(err))
		span.SetAttributes(telemetry.AttrErrorCode.String(engine.ErrorCode(err)))
		log.WithError(err).Error("Invocation failed")
	} else {
		log.WithFields(map[string]interface{}{
			"changed":   report.Changed,
			"operation": string(report.Operation),
			"committed": report.Committed,
		}).Info("Invocation completed")
	}

	span.SetAttributes(
		telemetry.AttrOperation.String(string(report.Operation)),
		telemetry.AttrChanged.Bool(report.Changed),
		telemetry.AttrCheckMode.Bool(report.CheckMode),
	)
	telemetry.End(span, err)

	r.telemetry.Metrics.RecordInvocationCompleted(string(report.Status), report.Duration)
	rec.finish(ctx, err)

	return report, err
}

func (r *Runner) execute(ctx context.Context, inv *config.Invocation, desired engine.DesiredState, report *Report, rec *recorder) error {
	log := telemetry.FromContext(ctx)

	if err := desired.Validate(); err != nil {
		return err
	}

	if err := r.checkPolicies(ctx, inv, desired, report, rec); err != nil {
		return err
	}

	transport := transportName(inv)
	session, err := r.opener(ctx, inv, log.Zerolog())
	if err != nil {
		return asDeviceError("failed to connect", err, desired.Object.Name, "connect")
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close device session")
		}
	}()
	session = instrument(session, transport)

	listing, err := session.List(ctx)
	if err != nil {
		return asDeviceError("failed to fetch listing", err, desired.Object.Name, "list")
	}
	rec.event(ctx, engine.EventTypeListingFetched, "Listing fetched", map[string]interface{}{
		"count": len(listing),
	})

	reconciler := engine.NewReconciler(session,
		engine.WithCheckMode(inv.Check),
		engine.WithLogger(log.Zerolog()),
	)
	result, err := reconciler.Reconcile(ctx, desired, listing)
	if err != nil {
		r.telemetry.Metrics.RecordReconciliation(plannedOperation(desired, listing), string(engine.RunStatusFailed))
		return err
	}

	report.Changed = result.Changed
	report.Operation = result.Operation
	report.Diff = result.Diff
	r.telemetry.Metrics.RecordReconciliation(string(result.Operation), string(engine.RunStatusSucceeded))

	if result.Changed {
		rec.event(ctx, engine.EventTypeObjectChanged, string(result.Operation)+" "+result.Name, result.Diff)
		if !inv.Check {
			rec.audit("object."+string(result.Operation), result.Name, result.Diff)
		}
	}

	if !inv.Commit || !result.Changed || inv.Check {
		return nil
	}

	return r.commit(ctx, session, desired.Object.Name, result.Operation, report, rec)
}

func (r *Runner) checkPolicies(ctx context.Context, inv *config.Invocation, desired engine.DesiredState, report *Report, rec *recorder) error {
	if r.policies == nil {
		return nil
	}

	ic := telemetry.StartOperation(ctx, "policy.evaluate")
	input := policy.NewPolicyInput(desired, inv.Scope())
	input.Context.User = r.actor
	input.Context.DryRun = inv.Check

	result, err := r.policies.Check(ic.Ctx, input)
	ic.End(err)

	if result != nil {
		report.Warnings = result.Warnings
		for _, v := range append(append([]policy.PolicyViolation(nil), result.Violations...), result.Warnings...) {
			r.telemetry.Metrics.RecordPolicyViolation(v.Policy, string(v.Severity))
		}
		rec.event(ctx, engine.EventTypePolicyEvaluated, "Policies evaluated", result)
		for _, w := range result.Warnings {
			rec.event(ctx, engine.EventTypeWarning, w.String(), w)
		}
	}
	return err
}

func (r *Runner) commit(ctx context.Context, session engine.Session, name string, op engine.OperationType, report *Report, rec *recorder) error {
	log := telemetry.FromContext(ctx)
	rec.event(ctx, engine.EventTypeCommitStarted, "Commit started", nil)

	result, err := session.Commit(ctx, engine.CommitOptions{
		Description: "urlcat: " + string(op) + " " + name,
	})
	if err != nil {
		r.telemetry.Metrics.RecordCommit(string(engine.RunStatusFailed))
		log.WithError(err).Warn("Commit failed; the change remains in the candidate configuration")
		return engine.NewCommitError("commit failed", err).
			WithResource(name).
			WithOperation("commit")
	}

	r.telemetry.Metrics.RecordCommit(string(engine.RunStatusSucceeded))
	report.Committed = true
	report.Commit = result
	rec.event(ctx, engine.EventTypeCommitCompleted, "Commit completed", result)
	rec.audit("config.commit", name, result)
	return nil
}

func (r *Runner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// List opens a session for inv and returns the full listing of its scope.
func (r *Runner) List(ctx context.Context, inv *config.Invocation) ([]engine.CustomURLCategory, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	ctx = r.telemetry.WithContext(ctx)

	session, err := r.opener(ctx, inv, r.logger.Zerolog())
	if err != nil {
		return nil, asDeviceError("failed to connect", err, "", "connect")
	}
	defer session.Close()

	listing, err := instrument(session, transportName(inv)).List(ctx)
	if err != nil {
		return nil, asDeviceError("failed to fetch listing", err, "", "list")
	}
	return listing, nil
}

// asDeviceError classifies err as a device communication failure unless it
// already carries a classification.
func asDeviceError(message string, err error, name, operation string) error {
	var engineErr *engine.EngineError
	if errors.As(err, &engineErr) {
		return err
	}
	e := engine.NewDeviceCommunicationError(message, err).WithOperation(operation)
	if name != "" {
		e = e.WithResource(name)
	}
	return e
}

// plannedOperation recomputes the intended operation for metrics labels when
// the mutation itself failed.
func plannedOperation(desired engine.DesiredState, listing []engine.CustomURLCategory) string {
	plan, err := engine.Plan(desired, listing)
	if err != nil {
		return "unknown"
	}
	return string(plan.Operation)
}
