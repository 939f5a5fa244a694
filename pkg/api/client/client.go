package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rzbill/subrelay/internal/config"
	"github.com/rzbill/subrelay/pkg/log"
	"github.com/rzbill/subrelay/pkg/version"
)

// ClientOptions holds configuration options for the API client.
type ClientOptions struct {
	// Address of the SubRelay server, e.g. http://localhost:8787.
	Address string

	// Token is an admin session token returned by Login.
	Token string

	// CallTimeout bounds each request.
	CallTimeout time.Duration

	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client

	Logger log.Logger
}

// DefaultClientOptions returns the default client options.
func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		Address:     fmt.Sprintf("http://localhost:%d", config.DefaultHTTPPort),
		CallTimeout: 30 * time.Second,
		Logger:      log.GetDefaultLogger().WithComponent("api-client"),
	}
}

// Client talks to the SubRelay HTTP API.
type Client struct {
	options *ClientOptions
	base    *url.URL
	http    *http.Client
	logger  log.Logger
}

// NewClient creates a new API client with the given options.
func NewClient(options *ClientOptions) (*Client, error) {
	if options == nil {
		options = DefaultClientOptions()
	}

	logger := options.Logger
	if logger == nil {
		logger = log.GetDefaultLogger().WithComponent("api-client")
	}

	address := options.Address
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	base, err := url.Parse(strings.TrimRight(address, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid server address %q", options.Address)
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: options.CallTimeout}
	}

	return &Client{
		options: options,
		base:    base,
		http:    httpClient,
		logger:  logger,
	}, nil
}

// Address returns the normalized server address.
func (c *Client) Address() string {
	return c.base.String()
}

// Token returns the current session token.
func (c *Client) Token() string {
	return c.options.Token
}

// SetToken replaces the session token used for admin calls.
func (c *Client) SetToken(token string) {
	c.options.Token = token
}

// APIError is a non-2xx reply from the server.
type APIError struct {
	StatusCode int
	Message    string
	// Field is set for validation failures.
	Field string
	// Body is the raw reply, useful for /sub errors with a debug block.
	Body []byte
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Field, e.Message, e.StatusCode)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func (c *Client) url(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends a request and returns the body of a 2xx reply. Other replies
// become an *APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in interface{}) ([]byte, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.options.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.options.Token)
	}

	c.logger.Debug("API request", log.Str("method", method), log.Str("path", path))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server at %s: %w", c.Address(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp.StatusCode, data)
	}
	return data, nil
}

func decodeError(status int, data []byte) error {
	apiErr := &APIError{StatusCode: status, Body: data}
	var reply struct {
		Field   string `json:"field"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &reply) == nil {
		apiErr.Field = reply.Field
		apiErr.Message = reply.Message
		if reply.Error != "" && reply.Message != "" && reply.Error != reply.Message {
			apiErr.Message = reply.Error + ": " + reply.Message
		} else if apiErr.Message == "" {
			apiErr.Message = reply.Error
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	data, err := c.do(ctx, method, path, query, in)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type messageReply struct {
	Message string `json:"message"`
}

// Login exchanges the admin password for a session token and keeps it on
// the client.
func (c *Client) Login(ctx context.Context, password string) (string, error) {
	var reply struct {
		Message string `json:"message"`
		Token   string `json:"token"`
	}
	in := map[string]string{"password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/login", nil, in, &reply); err != nil {
		return "", err
	}
	if reply.Token == "" {
		return "", fmt.Errorf("server did not return a session token")
	}
	c.options.Token = reply.Token
	return reply.Token, nil
}

// Logout revokes the current session token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doJSON(ctx, http.MethodPost, "/api/logout", nil, nil, &messageReply{}); err != nil {
		return err
	}
	c.options.Token = ""
	return nil
}

// Health checks /healthz.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	return err
}

// ServerVersion returns the server's build information.
func (c *Client) ServerVersion(ctx context.Context) (map[string]string, error) {
	info := map[string]string{}
	if err := c.doJSON(ctx, http.MethodGet, "/version", nil, nil, &info); err != nil {
		return nil, err
	}
	return info, nil
}
