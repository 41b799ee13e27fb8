package xmlapi

import (
	"strings"
	"testing"
	"time"

	"github.com/openfroyo/urlcat/pkg/engine"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig("fw.example.com")

	if config.Port != 443 {
		t.Errorf("expected port 443, got %d", config.Port)
	}
	if config.Protocol != "https" {
		t.Errorf("expected protocol https, got %s", config.Protocol)
	}
	if config.Timeout != 60*time.Second {
		t.Errorf("expected timeout 60s, got %v", config.Timeout)
	}
	if got := config.Endpoint(); got != "https://fw.example.com:443/api/" {
		t.Errorf("unexpected endpoint %q", got)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name       string
		modifyFunc func(*Config)
		errorMsg   string
	}{
		{
			name:       "valid with api key",
			modifyFunc: func(c *Config) { c.APIKey = "k" },
		},
		{
			name:       "valid with credentials",
			modifyFunc: func(c *Config) { c.Username, c.Password = "admin", "pw" },
		},
		{
			name:       "missing host",
			modifyFunc: func(c *Config) { c.APIKey = "k"; c.Host = "" },
			errorMsg:   "host is required",
		},
		{
			name:       "invalid port",
			modifyFunc: func(c *Config) { c.APIKey = "k"; c.Port = 70000 },
			errorMsg:   "invalid port",
		},
		{
			name:       "no credentials",
			modifyFunc: func(c *Config) { c.Username = "admin" },
			errorMsg:   "api key or username and password are required",
		},
		{
			name:       "bad protocol",
			modifyFunc: func(c *Config) { c.APIKey = "k"; c.Protocol = "ftp" },
			errorMsg:   "unsupported protocol",
		},
		{
			name: "both scopes",
			modifyFunc: func(c *Config) {
				c.APIKey = "k"
				c.Scope = engine.Scope{Vsys: "vsys1", DeviceGroup: "dg"}
			},
			errorMsg: "mutually exclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig("fw.example.com")
			tt.modifyFunc(config)
			err := config.Validate()
			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("expected no error, got: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("expected error containing %q, got %v", tt.errorMsg, err)
			}
		})
	}
}
