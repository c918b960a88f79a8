// Package serverapi is a REST client for a managed game server's control
// API: health checks, announcements, saves, and graceful shutdown/stop.
// Grounded on base_rest_api.py and auth_info.py, built on a retrying HTTP
// client since the control API runs on the same host and transient
// connection-refused/timeout errors should retry rather than fail the
// whole job.
package serverapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// APIRequestError wraps a failed control-API call: a non-2xx response or a
// transport failure after retries are exhausted.
type APIRequestError struct {
	Method   string
	Endpoint string
	Status   int
	Err      error
}

func (e *APIRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("serverapi: %s %s: %v", e.Method, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("serverapi: %s %s: status %d", e.Method, e.Endpoint, e.Status)
}

func (e *APIRequestError) Unwrap() error { return e.Err }

// Auth decorates an outgoing request with credentials for the control API.
type Auth interface {
	Apply(req *http.Request)
}

// BasicAuth authenticates with HTTP basic auth.
type BasicAuth struct {
	Username string
	Password string
}

// Apply implements Auth.
func (a BasicAuth) Apply(req *http.Request) {
	req.SetBasicAuth(a.Username, a.Password)
}

// BearerAuth authenticates with a bearer token.
type BearerAuth struct {
	Token string
}

// Apply implements Auth.
func (a BearerAuth) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.Token)
}

// NoAuth sends requests unauthenticated.
type NoAuth struct{}

// Apply implements Auth.
func (NoAuth) Apply(*http.Request) {}

// Client talks to a single managed game server's REST control surface.
type Client struct {
	baseURL    string
	auth       Auth
	httpClient *retryablehttp.Client
}

// New builds a Client. baseURL is stripped of a trailing slash. A nil auth
// is treated as NoAuth.
func New(baseURL string, auth Auth, timeout time.Duration) *Client {
	if auth == nil {
		auth = NoAuth{}
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 3
	httpClient.RetryWaitMin = 200 * time.Millisecond
	httpClient.RetryWaitMax = 2 * time.Second
	httpClient.Logger = nil
	httpClient.HTTPClient.Timeout = timeout

	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}

	return &Client{baseURL: baseURL, auth: auth, httpClient: httpClient}
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	url := c.baseURL + "/" + endpoint

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &APIRequestError{Method: method, Endpoint: endpoint, Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &APIRequestError{Method: method, Endpoint: endpoint, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.auth.Apply(req.Request)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIRequestError{Method: method, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIRequestError{Method: method, Endpoint: endpoint, Status: resp.StatusCode}
	}
	return data, nil
}

// HealthCheck reports whether the server's control API answers successfully.
func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.do(ctx, http.MethodGet, "v1/api/info", nil)
	return err == nil
}

// Announce sends a broadcast message to connected players.
func (c *Client) Announce(ctx context.Context, message string) error {
	_, err := c.do(ctx, http.MethodPost, "v1/api/announce", map[string]string{"message": message})
	return err
}

// Save triggers a server-side world/state save.
func (c *Client) Save(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "v1/api/save", nil)
	return err
}

// Shutdown asks the server to shut down gracefully after delaySeconds,
// announcing message first.
func (c *Client) Shutdown(ctx context.Context, message string, delaySeconds int) error {
	_, err := c.do(ctx, http.MethodPost, "v1/api/shutdown", map[string]any{
		"waittime": delaySeconds,
		"message":  message,
	})
	return err
}

// Stop asks the server to stop immediately via the control API.
func (c *Client) Stop(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "v1/api/stop", nil)
	return err
}
