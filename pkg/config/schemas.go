package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Built-in schema definition names.
const (
	InvocationSchema = "#Invocation"
	ProviderSchema   = "#Provider"
)

// SchemaRegistry manages CUE schema definitions for validation. Every value
// checked against a schema must be built with the registry's Context.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	// Built-in schemas compile or the binary is broken.
	for _, def := range []string{InvocationSchema, ProviderSchema} {
		if err := sr.RegisterSchema(def, builtinInvocationSchema); err != nil {
			panic(err)
		}
	}

	return sr
}

// Context returns the CUE context shared by all registered schemas.
func (sr *SchemaRegistry) Context() *cue.Context {
	return sr.ctx
}

// RegisterSchema compiles source and registers the definition it declares
// under name (e.g. "#Invocation").
func (sr *SchemaRegistry) RegisterSchema(name, source string) error {
	val := sr.ctx.CompileString(source, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	def := val.LookupPath(cue.ParsePath(name))
	if !def.Exists() {
		return fmt.Errorf("schema source does not declare %s", name)
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.schemas[name] = def
	return nil
}

// GetSchema retrieves a schema definition by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unify unifies val with the named schema and checks the result is concrete.
// The returned value is the schema-checked data.
func (sr *SchemaRegistry) Unify(name string, val cue.Value) (cue.Value, error) {
	schema, ok := sr.GetSchema(name)
	if !ok {
		return cue.Value{}, fmt.Errorf("schema %s not found", name)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, err
	}
	return unified, nil
}

// ValidateAgainstSchema validates Go data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	if _, err := sr.Unify(schemaName, dataVal); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// SchemaSource returns the CUE source of the built-in schemas.
func SchemaSource() string {
	return builtinInvocationSchema
}

// Fields absent from a file may still come from the environment or flags,
// so only their shape is constrained here. Closed definitions reject typos.
const builtinInvocationSchema = `
// Invocation of the custom URL category reconciler
#Invocation: {
	// Name identifies the custom URL category
	name?: string & =~"^.{1,63}$"

	// URL members, in order
	url_value?: [...string & !=""]

	type?: *"URL List" | "Category Match"

	description?: string

	state?: *"present" | "absent"

	commit?: bool
	check?:  bool

	// Firewall vsys or Panorama device group, never both
	vsys?:         string & !=""
	device_group?: string & !=""

	// Starlark snippet appending to url_value through its "urls" global
	url_script?: string

	provider?: #Provider
}

// Provider holds device connection parameters
#Provider: {
	transport?:   *"xmlapi" | "ssh"
	hostname?:    string & !=""
	port?:        int & >=1 & <=65535
	username?:    string
	password?:    string
	api_key?:     string
	insecure?:    bool
	timeout?:     string & =~"^[0-9]+(\\.[0-9]+)?(ns|us|ms|s|m|h)([0-9]+(\\.[0-9]+)?(ns|us|ms|s|m|h))*$"
	key_file?:    string
	known_hosts?: string
}
`
