package xmlapi

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/openfroyo/urlcat/pkg/engine"
)

// Config holds PAN-OS XML API connection configuration.
type Config struct {
	// Host is the firewall or Panorama hostname or IP address
	Host string

	// Port is the HTTPS port (default: 443)
	Port int

	// Protocol is "https" (default) or "http"
	Protocol string

	// Username for keygen authentication
	Username string

	// Password for keygen authentication
	Password string

	// APIKey skips keygen when set
	APIKey string

	// InsecureSkipVerify disables TLS certificate verification
	InsecureSkipVerify bool

	// Timeout bounds each HTTP request
	Timeout time.Duration

	// JobPollInterval is the delay between commit job status queries
	JobPollInterval time.Duration

	// Scope is the parent scope every object operation targets
	Scope engine.Scope
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(host string) *Config {
	return &Config{
		Host:            host,
		Port:            443,
		Protocol:        "https",
		Timeout:         60 * time.Second,
		JobPollInterval: 2 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.Protocol {
	case "http", "https":
	default:
		return fmt.Errorf("unsupported protocol: %q", c.Protocol)
	}

	if c.APIKey == "" && (c.Username == "" || c.Password == "") {
		return fmt.Errorf("api key or username and password are required")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if c.JobPollInterval <= 0 {
		return fmt.Errorf("job poll interval must be positive")
	}

	if c.Scope.Vsys != "" && c.Scope.DeviceGroup != "" {
		return fmt.Errorf("vsys and device group are mutually exclusive")
	}

	return nil
}

// Endpoint returns the API URL, e.g. https://fw.example.com:443/api/.
func (c *Config) Endpoint() string {
	return c.Protocol + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) + "/api/"
}
