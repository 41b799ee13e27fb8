package xmlapi

import (
	"fmt"
)

// TransportError represents a failure to exchange a request with the device.
type TransportError struct {
	// Op is the API request type that failed (e.g., "keygen", "config", "op")
	Op string

	// StatusCode is the HTTP status, or 0 when no response was received
	StatusCode int

	// Err is the underlying error
	Err error

	// IsTemporary indicates the request may succeed if the invocation is repeated
	IsTemporary bool
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: http %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports whether the failure is transient.
func (e *TransportError) Temporary() bool {
	return e.IsTemporary
}

// APIError is a response with status="error".
type APIError struct {
	// Code is the PAN-OS response code attribute
	Code string

	// Message is the text of the msg element
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return "api error: " + e.Message
	}
	return fmt.Sprintf("api error %s: %s", e.Code, e.Message)
}

// Temporary reports whether the device signalled a transient condition.
func (e *APIError) Temporary() bool {
	return e.Code == codeSessionTimedOut
}

// JobError is a commit job that finished with result FAIL.
type JobError struct {
	JobID   string
	Details []string
}

func (e *JobError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("job %s failed", e.JobID)
	}
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Details[0])
}
