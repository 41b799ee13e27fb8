package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/openfroyo/urlcat/pkg/engine"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvHostname, EnvUsername, EnvPassword, EnvAPIKey, EnvPort} {
		t.Setenv(key, "")
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }

const cueInvocation = `
name:      "blocked-sites"
url_value: ["bad.example.com", "*.worse.example.net"]
description: "managed"
commit: true
provider: {
	hostname: "fw.example.com"
	username: "admin"
	password: "secret"
}
`

func TestLoader_LoadFormats(t *testing.T) {
	clearEnv(t)

	want := &Invocation{
		Name:        "blocked-sites",
		URLValue:    []string{"bad.example.com", "*.worse.example.net"},
		Type:        "URL List",
		Description: "managed",
		State:       "present",
		Commit:      true,
		Provider: ProviderConfig{
			Transport: TransportXMLAPI,
			Hostname:  "fw.example.com",
			Username:  "admin",
			Password:  "secret",
		},
	}

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "cue", file: "invocation.cue", content: cueInvocation},
		{
			name: "yaml",
			file: "invocation.yaml",
			content: `
name: blocked-sites
url_value:
  - bad.example.com
  - "*.worse.example.net"
description: managed
commit: true
provider:
  hostname: fw.example.com
  username: admin
  password: secret
`,
		},
		{
			name: "json",
			file: "invocation.json",
			content: `{"name": "blocked-sites", "url_value": ["bad.example.com", "*.worse.example.net"],
"description": "managed", "commit": true,
"provider": {"hostname": "fw.example.com", "username": "admin", "password": "secret"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)

			got, err := NewLoader().Load(context.Background(), path, Overrides{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("invocation mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoader_SchemaErrorsCarryLocation(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, "bad.cue", `name: "x"
state: "gone"
provider: hostname: "fw"
`)

	_, err := NewLoader().Load(context.Background(), path, Overrides{})
	if !engine.IsInvalidSpecification(err) {
		t.Fatalf("expected invalid specification error, got %v", err)
	}

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors in chain, got %T", err)
	}
	found := false
	for _, v := range verrs {
		if strings.Contains(v.Path, "#") || strings.Contains(v.Message, "#Invocation") {
			t.Errorf("schema definition leaked into error: path=%q message=%q", v.Path, v.Message)
		}
		if v.File == path && v.Path == "state" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a state error in %s, got %v", path, verrs)
	}
}

func TestCUEPath(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{in: []string{"#Invocation", "state"}, want: "state"},
		{in: []string{"#Invocation", "provider", "port"}, want: "provider.port"},
		{in: []string{"url_value", "0"}, want: "url_value.0"},
		{in: []string{"#Invocation"}, want: ""},
		{in: nil, want: ""},
	}
	for _, tt := range tests {
		if got := cuePath(tt.in); got != tt.want {
			t.Errorf("cuePath(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoader_FileErrors(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{name: "unknown extension", file: "invocation.toml", content: `name = "x"`, wantErr: "unsupported config file extension"},
		{name: "cue syntax", file: "broken.cue", content: `name: "x`, wantErr: "failed to parse"},
		{name: "yaml syntax", file: "broken.yaml", content: "name: [x", wantErr: "failed to parse"},
		{name: "unknown yaml field", file: "typo.yaml", content: "name: x\nurl_values: [a]\n", wantErr: "url_values"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			_, err := NewLoader().Load(context.Background(), path, Overrides{})
			if !engine.IsInvalidSpecification(err) {
				t.Fatalf("expected invalid specification error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	_, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "missing.cue"), Overrides{})
	if !engine.IsInvalidSpecification(err) {
		t.Errorf("expected invalid specification error for missing file, got %v", err)
	}
}

func TestLoader_Precedence(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "invocation.cue", cueInvocation)

	t.Setenv(EnvHostname, "env-fw.example.com")
	t.Setenv(EnvPassword, "env-secret")
	t.Setenv(EnvPort, "8443")

	got, err := NewLoader().Load(context.Background(), path, Overrides{
		Password: strPtr("flag-secret"),
		State:    strPtr("absent"),
		URLValue: []string{"only.example.com"},
		Check:    boolPtr(true),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Provider.Hostname != "env-fw.example.com" {
		t.Errorf("expected env hostname, got %s", got.Provider.Hostname)
	}
	if got.Provider.Port != 8443 {
		t.Errorf("expected env port 8443, got %d", got.Provider.Port)
	}
	if got.Provider.Password != "flag-secret" {
		t.Errorf("expected flag password to win, got %s", got.Provider.Password)
	}
	if got.Provider.Username != "admin" {
		t.Errorf("expected file username, got %s", got.Provider.Username)
	}
	if got.State != "absent" || !got.Check {
		t.Errorf("expected flag state and check, got state=%s check=%v", got.State, got.Check)
	}
	if diff := cmp.Diff([]string{"only.example.com"}, got.URLValue); diff != "" {
		t.Errorf("url_value mismatch (-want +got):\n%s", diff)
	}
}

func TestLoader_InvalidEnvPort(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPort, "https")

	_, err := NewLoader().Load(context.Background(), "", Overrides{
		Name:     strPtr("x"),
		URLValue: []string{"a.com"},
		Hostname: strPtr("fw"),
	})
	if !engine.IsInvalidSpecification(err) {
		t.Fatalf("expected invalid specification error, got %v", err)
	}
}

func TestLoader_URLScript(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "invocation.yaml", `
name: tenants
url_value: [static.example.com]
url_script: |
  urls = [t + ".tenants.example.com" for t in ["red", "blue"]]
provider:
  hostname: fw.example.com
`)

	got, err := NewLoader().Load(context.Background(), path, Overrides{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"static.example.com", "red.tenants.example.com", "blue.tenants.example.com"}
	if diff := cmp.Diff(want, got.URLValue); diff != "" {
		t.Errorf("url_value mismatch (-want +got):\n%s", diff)
	}
}

func TestLoader_URLScriptError(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "invocation.yaml", `
name: tenants
url_value: [static.example.com]
url_script: "urls = 1 +"
provider:
  hostname: fw.example.com
`)

	_, err := NewLoader().Load(context.Background(), path, Overrides{})
	if !engine.IsInvalidSpecification(err) {
		t.Fatalf("expected invalid specification error, got %v", err)
	}
	if !strings.Contains(err.Error(), "url_script") {
		t.Errorf("expected url_script in error, got %v", err)
	}
}

func TestLoader_Validate(t *testing.T) {
	valid := func() *Invocation {
		return &Invocation{
			Name:     "blocked",
			URLValue: []string{"a.com"},
			Type:     "URL List",
			State:    "present",
			Provider: ProviderConfig{Transport: TransportXMLAPI, Hostname: "192.0.2.10"},
		}
	}

	tests := []struct {
		name     string
		mutate   func(*Invocation)
		wantPath string
	}{
		{name: "valid", mutate: func(*Invocation) {}},
		{name: "missing name", mutate: func(i *Invocation) { i.Name = "" }, wantPath: "name"},
		{name: "long name", mutate: func(i *Invocation) { i.Name = strings.Repeat("n", 64) }, wantPath: "name"},
		{name: "bad state", mutate: func(i *Invocation) { i.State = "gone" }, wantPath: "state"},
		{name: "bad type", mutate: func(i *Invocation) { i.Type = "Predefined" }, wantPath: "type"},
		{name: "empty member", mutate: func(i *Invocation) { i.URLValue = []string{"a.com", ""} }, wantPath: "url_value[1]"},
		{name: "vsys and device group", mutate: func(i *Invocation) { i.Vsys = "vsys2"; i.DeviceGroup = "branch" }, wantPath: "vsys"},
		{name: "missing hostname", mutate: func(i *Invocation) { i.Provider.Hostname = "" }, wantPath: "provider.hostname"},
		{name: "bad transport", mutate: func(i *Invocation) { i.Provider.Transport = "telnet" }, wantPath: "provider.transport"},
		{name: "bad port", mutate: func(i *Invocation) { i.Provider.Port = 70000 }, wantPath: "provider.port"},
		{name: "bad timeout", mutate: func(i *Invocation) { i.Provider.Timeout = "soon" }, wantPath: "provider.timeout"},
		{name: "missing key file", mutate: func(i *Invocation) { i.Provider.KeyFile = "/nonexistent/id_rsa" }, wantPath: "provider.key_file"},
	}

	l := NewLoader()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := valid()
			tt.mutate(inv)

			err := l.Validate(inv)
			if tt.wantPath == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}

			if !engine.IsInvalidSpecification(err) {
				t.Fatalf("expected invalid specification error, got %v", err)
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors in chain, got %T", err)
			}
			paths := make([]string, len(verrs))
			for i, v := range verrs {
				paths[i] = v.Path
			}
			if !contains(paths, tt.wantPath) {
				t.Errorf("expected error at %s, got %v", tt.wantPath, paths)
			}
		})
	}
}

func TestLoader_FlagsOnly(t *testing.T) {
	clearEnv(t)

	got, err := NewLoader().Load(context.Background(), "", Overrides{
		Name:        strPtr("blocked"),
		URLValue:    []string{"a.com"},
		DeviceGroup: strPtr("shared"),
		Transport:   strPtr("ssh"),
		Hostname:    strPtr("panorama.example.com"),
		Port:        intPtr(2222),
		Insecure:    boolPtr(true),
		Timeout:     strPtr("45s"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Scope() != (engine.Scope{DeviceGroup: "shared"}) {
		t.Errorf("unexpected scope %v", got.Scope())
	}
	ds := got.DesiredState()
	if ds.State != engine.StatePresent || ds.Object.Type != engine.CategoryTypeURLList {
		t.Errorf("expected defaults applied, got %+v", ds)
	}
	if d, _ := got.Provider.TimeoutDuration(0); d.String() != "45s" {
		t.Errorf("expected 45s timeout, got %v", d)
	}
}

func TestLoader_LoadConnection(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvHostname, "fw.example.com")
	t.Setenv(EnvAPIKey, "key")

	got, err := NewLoader().LoadConnection("", Overrides{Vsys: strPtr("vsys2")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "" {
		t.Errorf("expected no name, got %q", got.Name)
	}
	if got.Scope() != (engine.Scope{Vsys: "vsys2"}) || got.Provider.Transport != TransportXMLAPI {
		t.Errorf("unexpected invocation %+v", got)
	}

	clearEnv(t)
	_, err = NewLoader().LoadConnection("", Overrides{})
	if !engine.IsInvalidSpecification(err) {
		t.Errorf("expected invalid specification without hostname, got %v", err)
	}
}

func TestInvocation_Redacted(t *testing.T) {
	inv := Invocation{
		Name:     "x",
		URLValue: []string{"a.com"},
		Provider: ProviderConfig{Password: "pw", APIKey: "key"},
	}

	red := inv.Redacted()
	if red.Provider.Password == "pw" || red.Provider.APIKey == "key" {
		t.Errorf("expected secrets redacted, got %+v", red.Provider)
	}
	red.URLValue[0] = "changed"
	if inv.URLValue[0] != "a.com" {
		t.Error("expected redacted copy not to alias url_value")
	}
	if inv.Provider.Password != "pw" {
		t.Error("expected original untouched")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
