package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/openfroyo/urlcat/pkg/engine"
)

// Transport names.
const (
	TransportXMLAPI = "xmlapi"
	TransportSSH    = "ssh"
)

// Invocation holds every parameter of one reconciliation.
type Invocation struct {
	// Name identifies the custom URL category.
	Name string `json:"name" yaml:"name" validate:"required,max=63"`

	// URLValue lists the member URLs, in order.
	URLValue []string `json:"url_value,omitempty" yaml:"url_value,omitempty" validate:"omitempty,dive,required"`

	// Type is "URL List" or "Category Match".
	Type string `json:"type,omitempty" yaml:"type,omitempty" validate:"omitempty,oneof='URL List' 'Category Match'"`

	// Description is optional free text.
	Description string `json:"description,omitempty" yaml:"description,omitempty" validate:"max=255"`

	// State is present or absent.
	State string `json:"state,omitempty" yaml:"state,omitempty" validate:"omitempty,oneof=present absent"`

	// Commit commits the candidate configuration after a change.
	Commit bool `json:"commit,omitempty" yaml:"commit,omitempty"`

	// Check computes the change without issuing it.
	Check bool `json:"check,omitempty" yaml:"check,omitempty"`

	// Vsys is the firewall virtual system.
	Vsys string `json:"vsys,omitempty" yaml:"vsys,omitempty" validate:"excluded_with=DeviceGroup"`

	// DeviceGroup is the Panorama device group; "shared" for the shared scope.
	DeviceGroup string `json:"device_group,omitempty" yaml:"device_group,omitempty"`

	// URLScript is a Starlark snippet whose global "urls" list is appended to URLValue.
	URLScript string `json:"url_script,omitempty" yaml:"url_script,omitempty"`

	// Provider holds the device connection parameters.
	Provider ProviderConfig `json:"provider" yaml:"provider" validate:"required"`
}

// ProviderConfig holds device connection parameters.
type ProviderConfig struct {
	// Transport selects the device collaborator: xmlapi (default) or ssh.
	Transport string `json:"transport,omitempty" yaml:"transport,omitempty" validate:"omitempty,oneof=xmlapi ssh"`

	// Hostname is the firewall or Panorama address.
	Hostname string `json:"hostname" yaml:"hostname" validate:"required,hostname_rfc1123|ip"`

	// Port overrides the transport's default port.
	Port int `json:"port,omitempty" yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`

	// Username authenticates keygen (xmlapi) or the SSH login.
	Username string `json:"username,omitempty" yaml:"username,omitempty"`

	// Password authenticates keygen (xmlapi) or the SSH login.
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// APIKey skips keygen on the XML API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Insecure disables TLS verification (xmlapi) or host key checking (ssh).
	Insecure bool `json:"insecure,omitempty" yaml:"insecure,omitempty"`

	// Timeout bounds each request, as a Go duration string.
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"omitempty,duration"`

	// KeyFile is an SSH private key used instead of the password.
	KeyFile string `json:"key_file,omitempty" yaml:"key_file,omitempty" validate:"omitempty,file"`

	// KnownHosts is the SSH known_hosts file.
	KnownHosts string `json:"known_hosts,omitempty" yaml:"known_hosts,omitempty"`
}

// DesiredState builds the engine's desired state from the invocation.
func (i *Invocation) DesiredState() engine.DesiredState {
	return engine.DesiredState{
		Object: engine.CustomURLCategory{
			Name:        i.Name,
			URLValues:   append([]string(nil), i.URLValue...),
			Type:        engine.CategoryType(i.Type),
			Description: i.Description,
		},
		State: engine.State(i.State),
	}
}

// Scope returns the parent scope of the object.
func (i *Invocation) Scope() engine.Scope {
	return engine.Scope{Vsys: i.Vsys, DeviceGroup: i.DeviceGroup}
}

// TimeoutDuration parses the provider timeout, falling back to def when unset.
func (p ProviderConfig) TimeoutDuration(def time.Duration) (time.Duration, error) {
	if p.Timeout == "" {
		return def, nil
	}
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", p.Timeout, err)
	}
	return d, nil
}

// Redacted returns a copy safe to log or record.
func (i Invocation) Redacted() Invocation {
	if i.Provider.Password != "" {
		i.Provider.Password = "********"
	}
	if i.Provider.APIKey != "" {
		i.Provider.APIKey = "********"
	}
	i.URLValue = append([]string(nil), i.URLValue...)
	return i
}

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the field path of the error (e.g., "provider.hostname").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
		}
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path + ": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// ValidationErrors collects every problem found while loading an invocation.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.String()
	}
	return strings.Join(parts, "; ")
}

// StarlarkResult represents the result of Starlark execution.
type StarlarkResult struct {
	// Output holds the script's public globals.
	Output map[string]interface{} `json:"output,omitempty"`

	// ExecutionTime is how long the script took to execute.
	ExecutionTime time.Duration `json:"execution_time"`

	// Error is any error that occurred.
	Error string `json:"error,omitempty"`
}
