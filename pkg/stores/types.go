package stores

import (
	"context"
	"time"

	"github.com/openfroyo/urlcat/pkg/engine"
)

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// Run records one reconciliation invocation
type Run struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Scope       string               `json:"scope"`
	Host        string               `json:"host"`
	Transport   string               `json:"transport"`
	State       engine.State         `json:"state"`
	Operation   engine.OperationType `json:"operation,omitempty"`
	Changed     bool                 `json:"changed"`
	CheckMode   bool                 `json:"check_mode"`
	Committed   bool                 `json:"committed"`
	Status      engine.RunStatus     `json:"status"`
	ErrorCode   *string              `json:"error_code,omitempty"`
	Error       *string              `json:"error,omitempty"`
	Diff        string               `json:"diff"` // JSON blob
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
}

// Event represents an append-only timeline event
type Event struct {
	ID        int64            `json:"id"`
	RunID     *string          `json:"run_id,omitempty"`
	Type      engine.EventType `json:"type"`
	Level     EventLevel       `json:"level"`
	Message   string           `json:"message"`
	Details   *string          `json:"details,omitempty"` // JSON blob
	Timestamp time.Time        `json:"timestamp"`
}

// AuditEntry represents an audit trail entry for device changes
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`              // e.g., "object.create", "config.commit"
	Actor     string    `json:"actor"`               // device user or system identifier
	TargetID  *string   `json:"target_id,omitempty"` // object name
	Details   *string   `json:"details,omitempty"`   // JSON blob
	Timestamp time.Time `json:"timestamp"`
}

// RunFilter narrows ListRuns
type RunFilter struct {
	Name   string
	Status engine.RunStatus
	Limit  int
	Offset int
}

// Store defines the interface for the history layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	FinishRun(ctx context.Context, run *Run, audit []*AuditEntry) error
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
	DeleteRunsBefore(ctx context.Context, before time.Time) (int64, error)

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, runID *string, level *EventLevel, limit, offset int) ([]*Event, error)

	// Audit operations
	CreateAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, action *string, actor *string, limit, offset int) ([]*AuditEntry, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
