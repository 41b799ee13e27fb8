package engine

import (
	"encoding/json"
	"fmt"
)

// State is the reconciliation intent for a managed object.
type State string

const (
	// StatePresent requests the object exist with the desired field values.
	StatePresent State = "present"

	// StateAbsent requests the object not exist.
	StateAbsent State = "absent"
)

// Validate checks if the state is valid.
func (s State) Validate() error {
	switch s {
	case StatePresent, StateAbsent:
		return nil
	default:
		return fmt.Errorf("invalid state: %q (must be present or absent)", string(s))
	}
}

// OrDefault returns StatePresent when the state is unset.
func (s State) OrDefault() State {
	if s == "" {
		return StatePresent
	}
	return s
}

// CategoryType is the kind of custom URL category.
type CategoryType string

const (
	// CategoryTypeURLList holds explicit domain/URL patterns.
	CategoryTypeURLList CategoryType = "URL List"

	// CategoryTypeCategoryMatch holds predefined category names to match against.
	CategoryTypeCategoryMatch CategoryType = "Category Match"

	// DefaultCategoryType is used when no type is given.
	DefaultCategoryType = CategoryTypeURLList
)

// Normalize returns the default type when the value is empty.
func (t CategoryType) Normalize() CategoryType {
	if t == "" {
		return DefaultCategoryType
	}
	return t
}

// Validate checks if the category type is valid.
func (t CategoryType) Validate() error {
	switch t.Normalize() {
	case CategoryTypeURLList, CategoryTypeCategoryMatch:
		return nil
	default:
		return fmt.Errorf("invalid category type: %q (must be %q or %q)",
			string(t), CategoryTypeURLList, CategoryTypeCategoryMatch)
	}
}

// OperationType represents the mutation a reconciliation issues.
type OperationType string

const (
	// OperationCreate indicates a new object is created.
	OperationCreate OperationType = "create"

	// OperationUpdate indicates an existing object is overwritten.
	OperationUpdate OperationType = "update"

	// OperationDelete indicates an existing object is removed.
	OperationDelete OperationType = "delete"

	// OperationNoop indicates the device already satisfies the desired state.
	OperationNoop OperationType = "noop"
)

// IsMutating returns true if the operation changes device configuration.
func (o OperationType) IsMutating() bool {
	return o == OperationCreate || o == OperationUpdate || o == OperationDelete
}

// Validate checks if the operation type is valid.
func (o OperationType) Validate() error {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete, OperationNoop:
		return nil
	default:
		return fmt.Errorf("invalid operation type: %s", o)
	}
}

// RunStatus represents the overall outcome of one invocation.
type RunStatus string

const (
	// RunStatusRunning indicates the invocation is in progress.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates the invocation completed without error.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates the invocation stopped on an error.
	RunStatusFailed RunStatus = "failed"

	// RunStatusPartial indicates the mutation succeeded but the commit failed.
	RunStatusPartial RunStatus = "partial"
)

// IsTerminal returns true if the run status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusPartial
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusRunning, RunStatusSucceeded, RunStatusFailed, RunStatusPartial:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// EventType represents the type of event in an invocation timeline.
type EventType string

const (
	EventTypeRunStarted      EventType = "run_started"
	EventTypeListingFetched  EventType = "listing_fetched"
	EventTypePolicyEvaluated EventType = "policy_evaluated"
	EventTypeObjectChanged   EventType = "object_changed"
	EventTypeCommitStarted   EventType = "commit_started"
	EventTypeCommitCompleted EventType = "commit_completed"
	EventTypeRunCompleted    EventType = "run_completed"
	EventTypeRunFailed       EventType = "run_failed"
	EventTypeWarning         EventType = "warning"
)

// Severity returns the severity level of the event type.
func (e EventType) Severity() string {
	switch e {
	case EventTypeRunFailed:
		return "error"
	case EventTypeWarning:
		return "warning"
	default:
		return "info"
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *State) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = State(str).OrDefault()
	return s.Validate()
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (o OperationType) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(o))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (o *OperationType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*o = OperationType(str)
	return o.Validate()
}
