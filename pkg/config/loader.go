package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/urlcat/pkg/engine"
)

// Environment variables overlaid on the provider block.
const (
	EnvHostname = "PANOS_HOSTNAME"
	EnvUsername = "PANOS_USERNAME"
	EnvPassword = "PANOS_PASSWORD"
	EnvAPIKey   = "PANOS_API_KEY"
	EnvPort     = "PANOS_PORT"
)

// Overrides carries values set explicitly on the command line. Nil fields
// leave the file and environment values untouched.
type Overrides struct {
	Name        *string
	URLValue    []string
	Type        *string
	Description *string
	State       *string
	Commit      *bool
	Check       *bool
	Vsys        *string
	DeviceGroup *string

	Transport *string
	Hostname  *string
	Port      *int
	Username  *string
	Password  *string
	APIKey    *string
	Insecure  *bool
	Timeout   *string
	KeyFile   *string
}

// Loader builds an Invocation from a config file, the environment and flags,
// in that order of precedence (last wins).
type Loader struct {
	schemas   *SchemaRegistry
	starlark  *StarlarkEvaluator
	validator *validator.Validate
}

// NewLoader creates a loader with the built-in schemas.
func NewLoader() *Loader {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})

	return &Loader{
		schemas:   NewSchemaRegistry(),
		starlark:  NewStarlarkEvaluator(10 * time.Second),
		validator: v,
	}
}

// Schemas returns the loader's schema registry.
func (l *Loader) Schemas() *SchemaRegistry {
	return l.schemas
}

// Load reads path (optional), overlays the environment and ov, runs the
// url_script, fills defaults and validates the result. Every failure is an
// invalid specification error.
func (l *Loader) Load(ctx context.Context, path string, ov Overrides) (*Invocation, error) {
	inv := &Invocation{}

	if path != "" {
		decoded, err := l.LoadFile(path)
		if err != nil {
			return nil, err
		}
		inv = decoded
	}

	if err := applyEnv(inv); err != nil {
		return nil, engine.NewInvalidSpecificationError("invalid environment", err)
	}
	ov.apply(inv)

	if strings.TrimSpace(inv.URLScript) != "" {
		urls, err := l.starlark.EvaluateURLs(ctx, inv.URLScript, inv.Name, inv.URLValue)
		if err != nil {
			return nil, engine.NewInvalidSpecificationError("url_script failed", err).WithResource(inv.Name)
		}
		inv.URLValue = append(inv.URLValue, urls...)
	}

	applyDefaults(inv)

	if err := l.Validate(inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// LoadFile decodes a .cue, .yaml, .yml or .json file and checks it against
// the #Invocation schema. No defaults or overlays are applied.
func (l *Loader) LoadFile(path string) (*Invocation, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.NewInvalidSpecificationError("failed to read config file", err)
	}

	var val cue.Value
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue":
		val = l.schemas.Context().CompileBytes(content, cue.Filename(path))
		if err := val.Err(); err != nil {
			return nil, engine.NewInvalidSpecificationError("failed to parse config file",
				ValidationErrors(convertCUEErrors(err, path)))
		}
	case ".yaml", ".yml", ".json":
		var data map[string]interface{}
		if err := yaml.Unmarshal(content, &data); err != nil {
			return nil, engine.NewInvalidSpecificationError("failed to parse config file",
				ValidationErrors{{File: path, Message: err.Error()}})
		}
		if data == nil {
			data = map[string]interface{}{}
		}
		val = l.schemas.Context().Encode(data)
		if err := val.Err(); err != nil {
			return nil, engine.NewInvalidSpecificationError("failed to encode config file", err)
		}
	default:
		return nil, engine.NewInvalidSpecificationError(
			fmt.Sprintf("unsupported config file extension %q", ext), nil)
	}

	unified, err := l.schemas.Unify(InvocationSchema, val)
	if err != nil {
		verrs := convertCUEErrors(err, path)
		return nil, engine.NewInvalidSpecificationError("config file does not match schema", ValidationErrors(verrs))
	}

	inv := &Invocation{}
	if err := unified.Decode(inv); err != nil {
		return nil, engine.NewInvalidSpecificationError("failed to decode config file", err)
	}
	return inv, nil
}

// LoadConnection is Load for commands that only talk to the device, such as
// listing a scope: the object fields are not required and url_script is not run.
func (l *Loader) LoadConnection(path string, ov Overrides) (*Invocation, error) {
	inv := &Invocation{}

	if path != "" {
		decoded, err := l.LoadFile(path)
		if err != nil {
			return nil, err
		}
		inv = decoded
	}

	if err := applyEnv(inv); err != nil {
		return nil, engine.NewInvalidSpecificationError("invalid environment", err)
	}
	ov.apply(inv)
	applyDefaults(inv)

	if err := l.validator.StructExcept(inv, "Name"); err != nil {
		return nil, l.validationError(inv, err)
	}
	return inv, nil
}

// Validate checks an invocation's struct constraints.
func (l *Loader) Validate(inv *Invocation) error {
	err := l.validator.Struct(inv)
	if err == nil {
		return nil
	}
	return l.validationError(inv, err)
}

func (l *Loader) validationError(inv *Invocation, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return engine.NewInvalidSpecificationError("validation failed", err)
	}

	verrs := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		verrs = append(verrs, ValidationError{
			Path:    fieldPath(fe.Namespace()),
			Message: describeFieldError(fe),
		})
	}
	return engine.NewInvalidSpecificationError("invalid invocation", verrs).WithResource(inv.Name)
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "excluded_with":
		return "cannot be combined with device_group"
	case "duration":
		return fmt.Sprintf("%q is not a duration", fe.Value())
	case "file":
		return fmt.Sprintf("file %q does not exist", fe.Value())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// convertCUEErrors converts CUE errors to ValidationError slice, reporting
// the position inside file when the error has one there.
func convertCUEErrors(err error, file string) []ValidationError {
	var validationErrors []ValidationError

	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		verr := ValidationError{
			File:    file,
			Path:    cuePath(e.Path()),
			Message: fmt.Sprintf(format, args...),
		}

		for _, pos := range cueerrors.Positions(e) {
			if pos.Filename() == file {
				verr.Line = pos.Line()
				verr.Column = pos.Column()
				break
			}
		}

		validationErrors = append(validationErrors, verr)
	}

	return validationErrors
}

// cuePath joins a CUE error path, dropping the schema definition it was
// unified against so the path names the config field.
func cuePath(path []string) string {
	for len(path) > 0 && strings.HasPrefix(path[0], "#") {
		path = path[1:]
	}
	return strings.Join(path, ".")
}

// applyEnv overlays non-empty PANOS_* variables.
func applyEnv(inv *Invocation) error {
	p := &inv.Provider
	if v := os.Getenv(EnvHostname); v != "" {
		p.Hostname = v
	}
	if v := os.Getenv(EnvUsername); v != "" {
		p.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		p.Password = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		p.APIKey = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		p.Port = port
	}
	return nil
}

func (ov Overrides) apply(inv *Invocation) {
	setString(&inv.Name, ov.Name)
	if ov.URLValue != nil {
		inv.URLValue = append([]string(nil), ov.URLValue...)
	}
	setString(&inv.Type, ov.Type)
	setString(&inv.Description, ov.Description)
	setString(&inv.State, ov.State)
	setBool(&inv.Commit, ov.Commit)
	setBool(&inv.Check, ov.Check)
	setString(&inv.Vsys, ov.Vsys)
	setString(&inv.DeviceGroup, ov.DeviceGroup)

	p := &inv.Provider
	setString(&p.Transport, ov.Transport)
	setString(&p.Hostname, ov.Hostname)
	if ov.Port != nil {
		p.Port = *ov.Port
	}
	setString(&p.Username, ov.Username)
	setString(&p.Password, ov.Password)
	setString(&p.APIKey, ov.APIKey)
	setBool(&p.Insecure, ov.Insecure)
	setString(&p.Timeout, ov.Timeout)
	setString(&p.KeyFile, ov.KeyFile)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func applyDefaults(inv *Invocation) {
	if inv.State == "" {
		inv.State = string(engine.StatePresent)
	}
	if inv.Type == "" {
		inv.Type = string(engine.CategoryTypeURLList)
	}
	if inv.Provider.Transport == "" {
		inv.Provider.Transport = TransportXMLAPI
	}
}
