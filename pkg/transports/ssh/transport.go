// Package ssh manages PAN-OS custom URL categories through the management CLI
// over SSH.
//
// Each operation runs as one scripted shell session. Listing runs a
// configure-mode show with XML output, so it reads the candidate
// configuration. Mutations are configure-mode set and delete commands, and
// commits run commit (plus commit-all for device groups).
package ssh

import (
	"context"
	"fmt"
)

// Shell runs a CLI script on the device and returns its combined output.
type Shell interface {
	// RunScript sends each line to an interactive shell, waits for the
	// session to end and returns everything the device printed.
	RunScript(ctx context.Context, lines []string) (string, error)

	// Close releases the connection.
	Close() error
}

// TransportError represents an error from the transport layer.
type TransportError struct {
	// Op is the operation that failed (e.g., "connect", "script")
	Op string

	// Err is the underlying error
	Err error

	// IsTemporary indicates if the error is temporary
	IsTemporary bool

	// IsAuthError indicates if the error is related to authentication
	IsAuthError bool
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports whether the failure is transient.
func (e *TransportError) Temporary() bool {
	return e.IsTemporary
}

// CLIError is an error reported by the device CLI in its output.
type CLIError struct {
	// Command is the script line the error followed, when known
	Command string

	// Line is the offending output line
	Line string
}

func (e *CLIError) Error() string {
	if e.Command == "" {
		return "cli: " + e.Line
	}
	return "cli: " + e.Command + ": " + e.Line
}

// UpdateError is a rejected update. The delete half of an update may already
// have applied, so it records whether the previous entry was put back.
type UpdateError struct {
	Name       string
	Err        error
	Restored   bool
	RestoreErr error
}

func (e *UpdateError) Error() string {
	switch {
	case e.Restored:
		return fmt.Sprintf("update %q rejected, previous entry restored: %v", e.Name, e.Err)
	case e.RestoreErr != nil:
		return fmt.Sprintf("update %q rejected and the candidate configuration no longer holds it (restore failed: %v): %v", e.Name, e.RestoreErr, e.Err)
	default:
		return fmt.Sprintf("update %q rejected: %v", e.Name, e.Err)
	}
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}
