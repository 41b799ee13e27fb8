package runner

import (
	"context"
	"encoding/json"
	"time"

	"github.com/openfroyo/urlcat/pkg/config"
	"github.com/openfroyo/urlcat/pkg/engine"
	"github.com/openfroyo/urlcat/pkg/stores"
	"github.com/openfroyo/urlcat/pkg/telemetry"
)

// recorder writes one invocation's run, events and audit entries to the
// history store. Store failures are logged and never fail the invocation.
type recorder struct {
	store  stores.Store
	logger *telemetry.Logger
	run    *stores.Run
	report *Report
	actor  string
	audits []*stores.AuditEntry
}

func (r *Runner) newRecorder(ctx context.Context, inv *config.Invocation, report *Report) *recorder {
	rec := &recorder{
		store:  r.store,
		logger: telemetry.FromContext(ctx),
		report: report,
		actor:  r.actor,
	}
	if rec.actor == "" {
		rec.actor = inv.Provider.Username
	}
	if rec.store == nil {
		return rec
	}

	rec.run = &stores.Run{
		ID:        report.RunID,
		Name:      report.Name,
		Scope:     report.Scope,
		Host:      inv.Provider.Hostname,
		Transport: transportName(inv),
		State:     inv.DesiredState().State.OrDefault(),
		CheckMode: inv.Check,
		Status:    engine.RunStatusRunning,
		StartedAt: time.Now(),
	}
	if err := rec.store.CreateRun(ctx, rec.run); err != nil {
		rec.logger.WithError(err).Warn("Failed to record run; history disabled for this invocation")
		rec.store = nil
		return rec
	}

	rec.event(ctx, engine.EventTypeRunStarted, "Run started", inv.Redacted())
	return rec
}

// event appends a timeline event; details are stored as JSON.
func (rec *recorder) event(ctx context.Context, eventType engine.EventType, message string, details interface{}) {
	if rec.store == nil {
		return
	}

	runID := rec.run.ID
	event := &stores.Event{
		RunID:     &runID,
		Type:      eventType,
		Message:   message,
		Details:   marshalDetails(details),
		Timestamp: time.Now(),
	}
	if err := rec.store.AppendEvent(ctx, event); err != nil {
		rec.logger.WithError(err).Warn("Failed to record event")
	}
}

// audit queues an audit entry written together with the final run state.
func (rec *recorder) audit(action, target string, details interface{}) {
	if rec.store == nil {
		return
	}
	t := target
	rec.audits = append(rec.audits, &stores.AuditEntry{
		Action:    action,
		Actor:     rec.actor,
		TargetID:  &t,
		Details:   marshalDetails(details),
		Timestamp: time.Now(),
	})
}

// finish stores the final run state. It uses a context detached from
// cancellation so a timed-out invocation is still recorded.
func (rec *recorder) finish(ctx context.Context, runErr error) {
	if rec.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if runErr != nil {
		rec.event(ctx, engine.EventTypeRunFailed, runErr.Error(), nil)
		code := engine.ErrorCode(runErr)
		msg := runErr.Error()
		rec.run.ErrorCode = &code
		rec.run.Error = &msg
	} else {
		rec.event(ctx, engine.EventTypeRunCompleted, "Run completed", nil)
	}

	rec.run.Operation = rec.report.Operation
	rec.run.Changed = rec.report.Changed
	rec.run.Committed = rec.report.Committed
	rec.run.Status = rec.report.Status
	if d := marshalDetails(rec.report.Diff); d != nil {
		rec.run.Diff = *d
	}

	if err := rec.store.FinishRun(ctx, rec.run, rec.audits); err != nil {
		rec.logger.WithError(err).Warn("Failed to record run outcome")
	}
}

func marshalDetails(v interface{}) *string {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}
