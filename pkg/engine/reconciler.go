package engine

import (
	"context"

	"github.com/rs/zerolog"
)

// PlannedChange is the side-effect-free outcome of comparing desired state
// against an observed listing.
type PlannedChange struct {
	// Operation is the mutation required, or OperationNoop.
	Operation OperationType `json:"operation"`

	// Current is the observed entry with the desired name, if any.
	Current *CustomURLCategory `json:"current,omitempty"`

	// Target is the object to send for create/update. Nil for delete and noop.
	Target *CustomURLCategory `json:"target,omitempty"`

	// Diff describes the change; empty for noop.
	Diff Diff `json:"diff"`
}

// Plan compares desired with observed and decides which single mutation,
// if any, brings the device to the desired state.
func Plan(desired DesiredState, observed []CustomURLCategory) (*PlannedChange, error) {
	if err := desired.Validate(); err != nil {
		return nil, err
	}

	current := findByName(observed, desired.Object.Name)
	plan := &PlannedChange{Operation: OperationNoop, Current: current}

	if desired.State.OrDefault() == StateAbsent {
		if current == nil {
			return plan, nil
		}
		plan.Operation = OperationDelete
		plan.Diff = Diff{
			Before:  current,
			Changes: ComputeChanges(current, nil),
		}
		return plan, nil
	}

	target := desired.Object.Normalized()
	if current == nil {
		plan.Operation = OperationCreate
		plan.Target = &target
		plan.Diff = Diff{
			After:   &target,
			Changes: ComputeChanges(nil, &target),
		}
		return plan, nil
	}

	if Equal(*current, target) {
		return plan, nil
	}

	plan.Operation = OperationUpdate
	plan.Target = &target
	plan.Diff = Diff{
		Before:  current,
		After:   &target,
		Changes: ComputeChanges(current, &target),
	}
	return plan, nil
}

// Reconciler applies a planned change through a device mutator.
type Reconciler struct {
	// mutator receives at most one call per Reconcile.
	mutator Mutator

	// checkMode computes changes without issuing them.
	checkMode bool

	logger zerolog.Logger
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithCheckMode makes the reconciler report changes without mutating.
func WithCheckMode(enabled bool) ReconcilerOption {
	return func(r *Reconciler) {
		r.checkMode = enabled
	}
}

// WithLogger sets the reconciler's logger.
func WithLogger(logger zerolog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// NewReconciler creates a reconciler that mutates through m.
func NewReconciler(m Mutator, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		mutator: m,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile brings the object named in desired to the desired state, given
// a listing the caller fetched immediately before. Exactly one mutation is
// issued when and only when the result reports Changed (outside check mode).
func (r *Reconciler) Reconcile(ctx context.Context, desired DesiredState, observed []CustomURLCategory) (*Result, error) {
	plan, err := Plan(desired, observed)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Name:      desired.Object.Name,
		Changed:   plan.Operation.IsMutating(),
		Operation: plan.Operation,
		Diff:      plan.Diff,
		CheckMode: r.checkMode,
	}

	log := r.logger.With().
		Str("resource", desired.Object.Name).
		Str("operation", string(plan.Operation)).
		Logger()

	if !result.Changed {
		log.Debug().Msg("Object already in desired state")
		return result, nil
	}
	if r.checkMode {
		log.Info().Msg("Check mode, skipping mutation")
		return result, nil
	}

	if err := r.apply(ctx, plan, desired.Object.Name); err != nil {
		return nil, NewDeviceCommunicationError("mutation failed", err).
			WithResource(desired.Object.Name).
			WithOperation(string(plan.Operation))
	}

	log.Info().Int("changes", len(plan.Diff.Changes)).Msg("Object reconciled")
	return result, nil
}

func (r *Reconciler) apply(ctx context.Context, plan *PlannedChange, name string) error {
	switch plan.Operation {
	case OperationCreate:
		return r.mutator.Create(ctx, *plan.Target)
	case OperationUpdate:
		return r.mutator.Update(ctx, *plan.Target)
	case OperationDelete:
		return r.mutator.Delete(ctx, name)
	default:
		return nil
	}
}
