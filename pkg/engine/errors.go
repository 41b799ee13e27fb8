package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed if the
	// invocation is repeated. Examples: network timeouts, device busy.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates a non-recoverable error.
	// Examples: invalid input, authentication rejected, device-side validation failure.
	ErrorClassPermanent ErrorClass = "permanent"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code identifies the error kind for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the object name that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Resource != "" && e.Operation != "" {
		return fmt.Sprintf("[%s] %s (resource=%s, operation=%s)", e.Code, msg, e.Resource, e.Operation)
	}
	if e.Resource != "" {
		return fmt.Sprintf("[%s] %s (resource=%s)", e.Code, msg, e.Resource)
	}
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation=%s)", e.Code, msg, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Error codes.
const (
	ErrCodeInvalidSpecification = "INVALID_SPECIFICATION"
	ErrCodeDeviceCommunication  = "DEVICE_COMMUNICATION"
	ErrCodeCommit               = "COMMIT_FAILED"
	ErrCodePolicyDenied         = "POLICY_DENIED"
)

// Sentinels usable with errors.Is.
var (
	ErrInvalidSpecification = &EngineError{Code: ErrCodeInvalidSpecification}
	ErrDeviceCommunication  = &EngineError{Code: ErrCodeDeviceCommunication}
	ErrCommit               = &EngineError{Code: ErrCodeCommit}
)

// NewInvalidSpecificationError reports bad caller input. It is never retried.
func NewInvalidSpecificationError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassPermanent,
		Code:    ErrCodeInvalidSpecification,
		Message: message,
		Err:     err,
	}
}

// NewDeviceCommunicationError reports a failed listing fetch or mutation.
// The class is taken from the underlying error when it exposes Temporary().
func NewDeviceCommunicationError(message string, err error) *EngineError {
	return &EngineError{
		Class:   classify(err),
		Code:    ErrCodeDeviceCommunication,
		Message: message,
		Err:     err,
	}
}

// NewCommitError reports a failed commit. The preceding mutation may already
// be pending on the device.
func NewCommitError(message string, err error) *EngineError {
	return &EngineError{
		Class:   classify(err),
		Code:    ErrCodeCommit,
		Message: message,
		Err:     err,
	}
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(name string) *EngineError {
	e.Resource = name
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode overrides the error code.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsInvalidSpecification returns true if err is an InvalidSpecificationError.
func IsInvalidSpecification(err error) bool {
	return hasCode(err, ErrCodeInvalidSpecification) || hasCode(err, ErrCodePolicyDenied)
}

// IsDeviceCommunication returns true if err is a DeviceCommunicationError.
func IsDeviceCommunication(err error) bool {
	return hasCode(err, ErrCodeDeviceCommunication)
}

// IsCommitError returns true if err is a CommitError.
func IsCommitError(err error) bool {
	return hasCode(err, ErrCodeCommit)
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// ErrorCode returns the code of the outermost EngineError in err's chain.
func ErrorCode(err error) string {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func hasCode(err error, code string) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

type temporary interface {
	Temporary() bool
}

func classify(err error) ErrorClass {
	var t temporary
	if errors.As(err, &t) && t.Temporary() {
		return ErrorClassTransient
	}
	return ErrorClassPermanent
}
