package xmlapi

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const maxResponseBytes = 16 << 20

// Client issues PAN-OS XML API requests.
type Client struct {
	config   *Config
	http     *http.Client
	endpoint string
	logger   zerolog.Logger

	keyMu  sync.RWMutex
	apiKey string
}

// NewClient creates a new XML API client. No request is sent until the first call.
func NewClient(config *Config, logger zerolog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: config.InsecureSkipVerify, //nolint:gosec // operator opt-in for self-signed device certificates
	}

	return &Client{
		config:   config,
		http:     &http.Client{Timeout: config.Timeout, Transport: transport},
		endpoint: config.Endpoint(),
		logger:   logger.With().Str("component", "xmlapi").Str("host", config.Host).Logger(),
		apiKey:   config.APIKey,
	}, nil
}

// Keygen exchanges the configured username and password for an API key and
// stores it for subsequent requests. It is a no-op when a key is already set.
func (c *Client) Keygen(ctx context.Context) error {
	c.keyMu.RLock()
	hasKey := c.apiKey != ""
	c.keyMu.RUnlock()
	if hasKey {
		return nil
	}

	params := url.Values{}
	params.Set("type", "keygen")
	params.Set("user", c.config.Username)
	params.Set("password", c.config.Password)

	resp, err := c.send(ctx, "keygen", params, false)
	if err != nil {
		return err
	}
	key := strings.TrimSpace(resp.Result.Key)
	if key == "" {
		return &TransportError{Op: "keygen", Err: errors.New("response carried no key")}
	}

	c.keyMu.Lock()
	c.apiKey = key
	c.keyMu.Unlock()
	c.logger.Debug().Msg("API key generated")
	return nil
}

// Get returns the inner XML of the result of action=get at xpath. A missing
// object is reported as empty content, not as an error.
func (c *Client) Get(ctx context.Context, xpath string) ([]byte, error) {
	params := configParams("get", xpath)
	resp, err := c.send(ctx, "config", params, true)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == codeObjectNotPresent {
			return nil, nil
		}
		return nil, err
	}
	if resp.Code == codeObjectNotPresent {
		return nil, nil
	}
	return resp.Result.Inner, nil
}

// Set merges element into the configuration at xpath.
func (c *Client) Set(ctx context.Context, xpath, element string) error {
	params := configParams("set", xpath)
	params.Set("element", element)
	_, err := c.send(ctx, "config", params, true)
	return err
}

// Edit replaces the configuration node at xpath with element.
func (c *Client) Edit(ctx context.Context, xpath, element string) error {
	params := configParams("edit", xpath)
	params.Set("element", element)
	_, err := c.send(ctx, "config", params, true)
	return err
}

// Delete removes the configuration node at xpath.
func (c *Client) Delete(ctx context.Context, xpath string) error {
	_, err := c.send(ctx, "config", configParams("delete", xpath), true)
	return err
}

// op runs an operational command given as XML, e.g. <show><jobs><id>1</id></jobs></show>.
func (c *Client) op(ctx context.Context, cmd string) (*response, error) {
	params := url.Values{}
	params.Set("type", "op")
	params.Set("cmd", cmd)
	return c.send(ctx, "op", params, true)
}

func configParams(action, xpath string) url.Values {
	params := url.Values{}
	params.Set("type", "config")
	params.Set("action", action)
	params.Set("xpath", xpath)
	return params
}

// send posts params to the API endpoint and decodes the response envelope.
func (c *Client) send(ctx context.Context, op string, params url.Values, authenticated bool) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if authenticated {
		c.keyMu.RLock()
		req.Header.Set("X-PAN-KEY", c.apiKey)
		c.keyMu.RUnlock()
	}

	c.logger.Trace().
		Str("type", params.Get("type")).
		Str("action", params.Get("action")).
		Str("xpath", params.Get("xpath")).
		Msg("sending request")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err, IsTemporary: isTemporaryNetError(err)}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err), IsTemporary: true}
	}

	if httpResp.StatusCode != http.StatusOK {
		terr := &TransportError{
			Op:          op,
			StatusCode:  httpResp.StatusCode,
			Err:         errors.New(http.StatusText(httpResp.StatusCode)),
			IsTemporary: httpResp.StatusCode >= 500 || httpResp.StatusCode == http.StatusTooManyRequests,
		}
		if resp, perr := parseResponse(body); perr == nil {
			if apiErr := resp.err(); apiErr != nil {
				terr.Err = apiErr
			}
		}
		return nil, terr
	}

	resp, err := parseResponse(body)
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: httpResp.StatusCode, Err: err}
	}
	if err := resp.err(); err != nil {
		return nil, err
	}
	return resp, nil
}

func isTemporaryNetError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
