package runner

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openfroyo/urlcat/pkg/config"
	"github.com/openfroyo/urlcat/pkg/engine"
	"github.com/openfroyo/urlcat/pkg/telemetry"
	"github.com/openfroyo/urlcat/pkg/transports/ssh"
	"github.com/openfroyo/urlcat/pkg/transports/xmlapi"
)

// Opener connects to the device an invocation names.
type Opener func(ctx context.Context, inv *config.Invocation, logger zerolog.Logger) (engine.Session, error)

// OpenSession connects with the transport selected by inv.Provider.Transport.
func OpenSession(ctx context.Context, inv *config.Invocation, logger zerolog.Logger) (engine.Session, error) {
	switch transportName(inv) {
	case config.TransportSSH:
		cfg, err := SSHConfig(inv)
		if err != nil {
			return nil, err
		}
		session, err := ssh.Open(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return session, nil
	case config.TransportXMLAPI:
		cfg, err := XMLAPIConfig(inv)
		if err != nil {
			return nil, err
		}
		session, err := xmlapi.Open(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return session, nil
	default:
		return nil, fmt.Errorf("unsupported transport: %s", inv.Provider.Transport)
	}
}

// XMLAPIConfig builds the XML API connection configuration for inv.
func XMLAPIConfig(inv *config.Invocation) (*xmlapi.Config, error) {
	p := inv.Provider
	cfg := xmlapi.DefaultConfig(p.Hostname)
	if p.Port != 0 {
		cfg.Port = p.Port
	}
	cfg.Username = p.Username
	cfg.Password = p.Password
	cfg.APIKey = p.APIKey
	cfg.InsecureSkipVerify = p.Insecure
	cfg.Scope = inv.Scope()

	timeout, err := p.TimeoutDuration(cfg.Timeout)
	if err != nil {
		return nil, err
	}
	cfg.Timeout = timeout

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid xmlapi configuration: %w", err)
	}
	return cfg, nil
}

// SSHConfig builds the SSH connection configuration for inv.
func SSHConfig(inv *config.Invocation) (*ssh.Config, error) {
	p := inv.Provider
	cfg := ssh.DefaultConfig(p.Hostname, p.Username)
	if p.Port != 0 {
		cfg.Port = p.Port
	}
	cfg.Password = p.Password
	if p.KeyFile != "" {
		cfg.AuthMethod = ssh.AuthMethodKey
		cfg.PrivateKeyPath = p.KeyFile
	}
	if p.KnownHosts != "" {
		cfg.KnownHostsPath = p.KnownHosts
	}
	cfg.StrictHostKeyChecking = !p.Insecure
	cfg.Scope = inv.Scope()

	timeout, err := p.TimeoutDuration(cfg.ConnectionTimeout)
	if err != nil {
		return nil, err
	}
	cfg.ConnectionTimeout = timeout

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ssh configuration: %w", err)
	}
	return cfg, nil
}

func transportName(inv *config.Invocation) string {
	if inv.Provider.Transport == "" {
		return config.TransportXMLAPI
	}
	return inv.Provider.Transport
}

// instrumentedSession records a span and metrics around every device call.
type instrumentedSession struct {
	engine.Session
	transport string
}

func instrument(s engine.Session, transport string) engine.Session {
	return &instrumentedSession{Session: s, transport: transport}
}

func (s *instrumentedSession) List(ctx context.Context) ([]engine.CustomURLCategory, error) {
	var listing []engine.CustomURLCategory
	err := telemetry.RecordDeviceOperation(ctx, s.transport, "list", func(ctx context.Context) error {
		var err error
		listing, err = s.Session.List(ctx)
		return err
	})
	return listing, err
}

func (s *instrumentedSession) Create(ctx context.Context, obj engine.CustomURLCategory) error {
	return telemetry.RecordDeviceOperation(ctx, s.transport, string(engine.OperationCreate), func(ctx context.Context) error {
		return s.Session.Create(ctx, obj)
	})
}

func (s *instrumentedSession) Update(ctx context.Context, obj engine.CustomURLCategory) error {
	return telemetry.RecordDeviceOperation(ctx, s.transport, string(engine.OperationUpdate), func(ctx context.Context) error {
		return s.Session.Update(ctx, obj)
	})
}

func (s *instrumentedSession) Delete(ctx context.Context, name string) error {
	return telemetry.RecordDeviceOperation(ctx, s.transport, string(engine.OperationDelete), func(ctx context.Context) error {
		return s.Session.Delete(ctx, name)
	})
}

func (s *instrumentedSession) Commit(ctx context.Context, opts engine.CommitOptions) (*engine.CommitResult, error) {
	var result *engine.CommitResult
	err := telemetry.RecordDeviceOperation(ctx, s.transport, "commit", func(ctx context.Context) error {
		var err error
		result, err = s.Session.Commit(ctx, opts)
		return err
	})
	return result, err
}
