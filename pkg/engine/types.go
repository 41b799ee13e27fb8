package engine

import (
	"fmt"
	"strings"
	"time"
)

// CustomURLCategory is the single object kind under management.
type CustomURLCategory struct {
	// Name identifies the object within its parent scope.
	Name string `json:"name" yaml:"name"`

	// URLValues are the member patterns. Order is preserved and compared.
	URLValues []string `json:"url_value" yaml:"url_value"`

	// Type is the category type; empty means URL List.
	Type CategoryType `json:"type,omitempty" yaml:"type,omitempty"`

	// Description is optional free text.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Clone returns a deep copy of the object.
func (c CustomURLCategory) Clone() CustomURLCategory {
	out := c
	if c.URLValues != nil {
		out.URLValues = append([]string(nil), c.URLValues...)
	}
	return out
}

// Normalized returns a copy with the default type filled in.
func (c CustomURLCategory) Normalized() CustomURLCategory {
	out := c.Clone()
	out.Type = c.Type.Normalize()
	return out
}

// DesiredState is the object built from invocation parameters plus intent.
type DesiredState struct {
	// Object is the desired object. Only Name is consulted for StateAbsent.
	Object CustomURLCategory `json:"object"`

	// State is present or absent; empty means present.
	State State `json:"state"`
}

// Validate checks the desired state for the conditions a reconciliation requires.
func (d DesiredState) Validate() error {
	if strings.TrimSpace(d.Object.Name) == "" {
		return NewInvalidSpecificationError("name is required", nil)
	}
	if err := d.State.OrDefault().Validate(); err != nil {
		return NewInvalidSpecificationError("invalid state", err).WithResource(d.Object.Name)
	}
	if d.State.OrDefault() == StateAbsent {
		return nil
	}
	if len(d.Object.URLValues) == 0 {
		return NewInvalidSpecificationError("url_value must not be empty when state is present", nil).
			WithResource(d.Object.Name)
	}
	if err := d.Object.Type.Validate(); err != nil {
		return NewInvalidSpecificationError("invalid type", err).WithResource(d.Object.Name)
	}
	return nil
}

// Scope is the parent configuration scope of the managed object.
// Exactly one of Vsys and DeviceGroup is used; DeviceGroup wins when both are set.
type Scope struct {
	// Vsys is the firewall virtual system (default vsys1).
	Vsys string `json:"vsys,omitempty"`

	// DeviceGroup is the Panorama device group; "shared" addresses the shared scope.
	DeviceGroup string `json:"device_group,omitempty"`
}

// DefaultVsys is the firewall vsys used when none is given.
const DefaultVsys = "vsys1"

// SharedDeviceGroup selects the Panorama shared scope.
const SharedDeviceGroup = "shared"

// IsPanorama returns true if the scope addresses a Panorama device group.
func (s Scope) IsPanorama() bool {
	return s.DeviceGroup != ""
}

// IsShared returns true if the scope is Panorama's shared scope.
func (s Scope) IsShared() bool {
	return s.DeviceGroup == SharedDeviceGroup
}

// VsysOrDefault returns the configured vsys or DefaultVsys.
func (s Scope) VsysOrDefault() string {
	if s.Vsys == "" {
		return DefaultVsys
	}
	return s.Vsys
}

// String renders the scope for logs.
func (s Scope) String() string {
	if s.IsPanorama() {
		return "device-group:" + s.DeviceGroup
	}
	return "vsys:" + s.VsysOrDefault()
}

// Change represents a single field difference.
type Change struct {
	// Path is the field being changed (e.g., "url_value").
	Path string `json:"path"`

	// Before is the value before the change.
	Before interface{} `json:"before,omitempty"`

	// After is the value after the change.
	After interface{} `json:"after,omitempty"`

	// Action describes the change action (add, remove, modify).
	Action ChangeAction `json:"action"`
}

// ChangeAction represents the type of change being made.
type ChangeAction string

const (
	// ChangeActionAdd indicates a field is set on a new object.
	ChangeActionAdd ChangeAction = "add"

	// ChangeActionRemove indicates a field disappears with its object.
	ChangeActionRemove ChangeAction = "remove"

	// ChangeActionModify indicates a field value is being changed.
	ChangeActionModify ChangeAction = "modify"
)

// Diff is the human-readable before/after description of a reconciliation.
// Both sides are nil when nothing changed.
type Diff struct {
	Before  *CustomURLCategory `json:"before,omitempty"`
	After   *CustomURLCategory `json:"after,omitempty"`
	Changes []Change           `json:"changes,omitempty"`
}

// IsEmpty returns true if the diff describes no change.
func (d Diff) IsEmpty() bool {
	return d.Before == nil && d.After == nil && len(d.Changes) == 0
}

// String renders the diff in a unified-like text form.
func (d Diff) String() string {
	if d.IsEmpty() {
		return ""
	}
	var b strings.Builder
	for _, c := range d.Changes {
		switch c.Action {
		case ChangeActionAdd:
			fmt.Fprintf(&b, "+ %s: %s\n", c.Path, formatValue(c.After))
		case ChangeActionRemove:
			fmt.Fprintf(&b, "- %s: %s\n", c.Path, formatValue(c.Before))
		default:
			fmt.Fprintf(&b, "- %s: %s\n", c.Path, formatValue(c.Before))
			fmt.Fprintf(&b, "+ %s: %s\n", c.Path, formatValue(c.After))
		}
	}
	return b.String()
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return `""`
	case []string:
		quoted := make([]string, len(val))
		for i, s := range val {
			quoted[i] = fmt.Sprintf("%q", s)
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	case string:
		return fmt.Sprintf("%q", val)
	case CategoryType:
		return fmt.Sprintf("%q", string(val))
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Result is the outcome of one reconciliation.
type Result struct {
	// Name is the reconciled object's name.
	Name string `json:"name"`

	// Changed reports whether the device needed (or, in check mode, would need) a mutation.
	Changed bool `json:"changed"`

	// Operation is the mutation issued, or noop.
	Operation OperationType `json:"operation"`

	// Diff describes the change; empty when Changed is false.
	Diff Diff `json:"diff"`

	// CheckMode is true when the mutation was computed but not issued.
	CheckMode bool `json:"check_mode,omitempty"`
}

// CommitOptions controls a commit issued after a successful change.
type CommitOptions struct {
	// DeviceGroup, when set on Panorama, adds a commit-all pushing to the group.
	DeviceGroup string `json:"device_group,omitempty"`

	// Description is attached to the commit when the device supports it.
	Description string `json:"description,omitempty"`
}

// CommitResult describes a completed commit.
type CommitResult struct {
	// JobID is the device job identifier, if the device reports one.
	JobID string `json:"job_id,omitempty"`

	// PushJobID is the commit-all job identifier for device-group pushes.
	PushJobID string `json:"push_job_id,omitempty"`

	// Messages are device messages attached to the commit job.
	Messages []string `json:"messages,omitempty"`

	// Duration is how long the commit took including job polling.
	Duration time.Duration `json:"duration"`
}
