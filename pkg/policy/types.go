package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/openfroyo/urlcat/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that should block operations.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Blocks returns true if a violation of this severity stops the invocation.
func (s Severity) Blocks() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents a policy rule with its Rego code. The module's package
// must define a "deny" set; each member is a message string or an object
// with "message" and optional "severity".
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity applies to deny members that do not set their own.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// PolicyViolation represents a single policy violation.
type PolicyViolation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Resource is the object name that violated the policy.
	Resource string `json:"resource,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// Details contains additional violation details.
	Details map[string]interface{} `json:"details,omitempty"`
}

func (v PolicyViolation) String() string {
	return fmt.Sprintf("%s [%s]: %s", v.Policy, v.Severity, v.Message)
}

// PolicyResult represents the result of policy evaluation.
type PolicyResult struct {
	// Allowed is false when any violation blocks.
	Allowed bool `json:"allowed"`

	// Violations lists blocking (error and critical) violations.
	Violations []PolicyViolation `json:"violations,omitempty"`

	// Warnings lists info and warning violations.
	Warnings []PolicyViolation `json:"warnings,omitempty"`

	// EvaluatedAt is when the policy was evaluated.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// PolicyInput is the "input" document seen by Rego.
type PolicyInput struct {
	// Object is the desired custom URL category.
	Object engine.CustomURLCategory `json:"object"`

	// State is the desired intent.
	State engine.State `json:"state"`

	// Scope is the parent scope.
	Scope engine.Scope `json:"scope"`

	// Context provides additional evaluation context.
	Context *PolicyContext `json:"context"`
}

// NewPolicyInput builds an input document from desired state.
func NewPolicyInput(desired engine.DesiredState, scope engine.Scope) *PolicyInput {
	return &PolicyInput{
		Object:  desired.Object.Normalized(),
		State:   desired.State.OrDefault(),
		Scope:   scope,
		Context: &PolicyContext{Timestamp: time.Now()},
	}
}

// PolicyContext provides context information for policy evaluation.
type PolicyContext struct {
	// User is the user performing the operation.
	User string `json:"user,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// DryRun indicates check mode.
	DryRun bool `json:"dry_run"`

	// Metadata contains additional context metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// DeniedError lists the violations that blocked an invocation.
type DeniedError struct {
	Violations []PolicyViolation
}

func (e *DeniedError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return strings.Join(parts, "; ")
}
