package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

type tempErr struct{ temp bool }

func (e tempErr) Error() string   { return "i/o timeout" }
func (e tempErr) Temporary() bool { return e.temp }

func TestEngineError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *EngineError
		want string
	}{
		{
			name: "message only",
			err:  NewInvalidSpecificationError("name is required", nil),
			want: "[INVALID_SPECIFICATION] name is required",
		},
		{
			name: "with cause and resource",
			err:  NewDeviceCommunicationError("listing failed", errors.New("connection refused")).WithResource("web"),
			want: "[DEVICE_COMMUNICATION] listing failed: connection refused (resource=web)",
		},
		{
			name: "with resource and operation",
			err:  NewCommitError("commit failed", nil).WithResource("web").WithOperation("commit"),
			want: "[COMMIT_FAILED] commit failed (resource=web, operation=commit)",
		},
		{
			name: "operation only",
			err:  NewCommitError("commit failed", nil).WithOperation("commit-all"),
			want: "[COMMIT_FAILED] commit failed (operation=commit-all)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEngineError_Classification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"invalid spec is permanent", NewInvalidSpecificationError("bad", nil), false},
		{"plain cause is permanent", NewDeviceCommunicationError("x", errors.New("403 forbidden")), false},
		{"temporary cause is transient", NewDeviceCommunicationError("x", tempErr{temp: true}), true},
		{"wrapped temporary cause", NewCommitError("x", fmt.Errorf("poll: %w", tempErr{temp: true})), true},
		{"non-temporary cause", NewCommitError("x", tempErr{temp: false}), false},
		{"not an engine error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.transient {
				t.Errorf("IsTransient() = %v, want %v", got, tt.transient)
			}
		})
	}
}

func TestEngineError_Predicates(t *testing.T) {
	spec := NewInvalidSpecificationError("bad", nil)
	policy := NewInvalidSpecificationError("denied", nil).WithCode(ErrCodePolicyDenied)
	device := NewDeviceCommunicationError("down", nil)
	commit := NewCommitError("failed", nil)
	wrapped := fmt.Errorf("run: %w", commit)

	if !IsInvalidSpecification(spec) || !IsInvalidSpecification(policy) {
		t.Error("Expected spec and policy errors to be invalid specification")
	}
	if IsInvalidSpecification(device) {
		t.Error("Device error is not an invalid specification")
	}
	if !IsDeviceCommunication(device) || IsDeviceCommunication(commit) {
		t.Error("IsDeviceCommunication mismatch")
	}
	if !IsCommitError(wrapped) {
		t.Error("Expected wrapped commit error to be detected")
	}
	if !errors.Is(wrapped, ErrCommit) {
		t.Error("Expected errors.Is(wrapped, ErrCommit)")
	}
	if errors.Is(wrapped, ErrDeviceCommunication) {
		t.Error("Commit error must not match ErrDeviceCommunication")
	}
	if ErrorCode(wrapped) != ErrCodeCommit {
		t.Errorf("ErrorCode() = %q, want %q", ErrorCode(wrapped), ErrCodeCommit)
	}
	if ErrorCode(errors.New("plain")) != "" {
		t.Error("Expected empty code for plain error")
	}
}

func TestEngineError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewDeviceCommunicationError("mutation failed", cause).WithDetail("status", 502)

	if !errors.Is(err, cause) {
		t.Error("Expected cause to be reachable through Unwrap")
	}
	if err.Details["status"] != 502 {
		t.Errorf("Expected detail status=502, got %v", err.Details["status"])
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("Expected cause in message, got %q", err.Error())
	}
}
