package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// SSHClient implements Shell over a single SSH connection.
type SSHClient struct {
	config *Config
	logger zerolog.Logger

	client      *ssh.Client
	connMu      sync.RWMutex
	isConnected bool
	connectedAt time.Time
}

var _ Shell = (*SSHClient)(nil)

// sessionDrainTimeout bounds the wait for a closed session's output.
const sessionDrainTimeout = 2 * time.Second

// NewSSHClient creates a new SSH client. Connect must be called before use.
func NewSSHClient(config *Config, logger zerolog.Logger) (*SSHClient, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &SSHClient{
		config: config,
		logger: logger.With().Str("component", "ssh").Str("host", config.Host).Logger(),
	}, nil
}

// Connect establishes an SSH connection to the device.
func (c *SSHClient) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.isConnected && c.client != nil {
		return nil
	}

	clientConfig, err := c.config.BuildSSHClientConfig()
	if err != nil {
		return &TransportError{
			Op:          "connect",
			Err:         err,
			IsAuthError: true,
		}
	}

	address := c.config.Address()
	c.logger.Debug().Str("address", address).Msg("establishing SSH connection")

	connChan := make(chan *ssh.Client, 1)
	errChan := make(chan error, 1)

	go func() {
		client, err := ssh.Dial("tcp", address, clientConfig)
		if err != nil {
			errChan <- err
			return
		}
		connChan <- client
	}()

	select {
	case <-ctx.Done():
		return &TransportError{
			Op:          "connect",
			Err:         ctx.Err(),
			IsTemporary: true,
		}
	case err := <-errChan:
		return &TransportError{
			Op:          "connect",
			Err:         err,
			IsTemporary: !isAuthFailure(err),
			IsAuthError: isAuthFailure(err),
		}
	case client := <-connChan:
		c.client = client
		c.isConnected = true
		c.connectedAt = time.Now()
		c.logger.Info().Str("address", address).Msg("SSH connection established")
		return nil
	}
}

func isAuthFailure(err error) bool {
	return err != nil && strings.Contains(err.Error(), "unable to authenticate")
}

// Close closes the SSH connection.
func (c *SSHClient) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if !c.isConnected || c.client == nil {
		return nil
	}

	c.logger.Debug().Msg("closing SSH connection")

	err := c.client.Close()
	c.client = nil
	c.isConnected = false

	if err != nil {
		return &TransportError{Op: "disconnect", Err: err}
	}
	return nil
}

// IsConnected returns true if the client has an active connection.
func (c *SSHClient) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.isConnected
}

// RunScript runs lines in an interactive shell. PAN-OS does not accept exec
// requests, so the script is fed to the shell's stdin and the session ends
// when the device processes the trailing exit.
func (c *SSHClient) RunScript(ctx context.Context, lines []string) (string, error) {
	client, err := c.getClient()
	if err != nil {
		return "", err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.CommandTimeout)
		defer cancel()
	}

	session, err := client.NewSession()
	if err != nil {
		return "", &TransportError{
			Op:          "script",
			Err:         fmt.Errorf("failed to create session: %w", err),
			IsTemporary: true,
		}
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out
	session.Stdin = strings.NewReader(strings.Join(lines, "\n") + "\n")

	if err := session.RequestPty("vt100", 0, 500, ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}); err != nil {
		return "", &TransportError{
			Op:          "script",
			Err:         fmt.Errorf("failed to request pseudo-terminal: %w", err),
			IsTemporary: true,
		}
	}

	if err := session.Shell(); err != nil {
		return "", &TransportError{
			Op:          "script",
			Err:         fmt.Errorf("failed to start shell: %w", err),
			IsTemporary: true,
		}
	}

	start := time.Now()
	doneChan := make(chan error, 1)
	go func() {
		doneChan <- session.Wait()
	}()

	var waitErr error
	select {
	case <-ctx.Done():
		_ = session.Close()
		// Wait returns only after the output copiers stop writing to out.
		partial := ""
		select {
		case <-doneChan:
			partial = out.String()
		case <-time.After(sessionDrainTimeout):
		}
		return partial, &TransportError{Op: "script", Err: ctx.Err(), IsTemporary: true}
	case waitErr = <-doneChan:
	}

	c.logger.Debug().
		Int("lines", len(lines)).
		Int("output_len", out.Len()).
		Dur("duration", time.Since(start)).
		Msg("script completed")

	var exitErr *ssh.ExitError
	var missing *ssh.ExitMissingError
	switch {
	case waitErr == nil, errors.As(waitErr, &missing):
		return out.String(), nil
	case errors.As(waitErr, &exitErr):
		return out.String(), &TransportError{
			Op:  "script",
			Err: fmt.Errorf("shell exited with code %d", exitErr.ExitStatus()),
		}
	default:
		return out.String(), &TransportError{Op: "script", Err: waitErr, IsTemporary: true}
	}
}

// getClient returns the underlying SSH client.
func (c *SSHClient) getClient() (*ssh.Client, error) {
	c.connMu.RLock()
	defer c.connMu.RUnlock()

	if !c.isConnected || c.client == nil {
		return nil, &TransportError{
			Op:  "get-client",
			Err: fmt.Errorf("not connected"),
		}
	}
	return c.client, nil
}
