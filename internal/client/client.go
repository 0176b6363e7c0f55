// Package client is the Go counterpart of the dashboard's API layer: a resty based
// REST client, a file backed session store, the session state machine and the
// assignment editors fed from API responses.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// GenericErrorMessage is shown when the server gave no usable message.
const GenericErrorMessage = "An unexpected error occurred. Please try again."

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx response. Message prefers the server's "detail", then "error".
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: %d %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Message returns the text to show a user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return GenericErrorMessage
}

// Client calls the StationPortal API under <server>/api.
type Client struct {
	http *resty.Client

	mu    sync.RWMutex
	token string
}

// New builds a client for server, e.g. http://localhost:8000.
func New(server string) *Client {
	c := &Client{}
	c.http = resty.New().
		SetBaseURL(strings.TrimRight(strings.TrimSpace(server), "/")+"/api").
		SetTimeout(DefaultTimeout).
		SetHeader("Accept", "application/json")
	c.http.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if token := c.Token(); token != "" && req.Header.Get("Authorization") == "" {
			req.SetAuthToken(token)
		}
		return nil
	})
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.http.BaseURL }

// NotificationsURL returns the websocket endpoint matching the API root.
func (c *Client) NotificationsURL() string {
	base := c.BaseURL()
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws/notifications"
}

// Token returns the bearer token attached to requests.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token. Empty sends requests unauthenticated.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

func (c *Client) r(ctx context.Context) *resty.Request {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.http.R().SetContext(ctx)
}

// check turns transport failures and non-2xx responses into errors.
func check(resp *resty.Response, errDo error) error {
	if errDo != nil {
		return fmt.Errorf("client: request: %w", errDo)
	}
	if resp.IsError() {
		return newAPIError(resp.StatusCode(), resp.Body())
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	out := &APIError{Status: status, Message: GenericErrorMessage}
	var payload map[string]any
	if errDecode := json.Unmarshal(body, &payload); errDecode != nil {
		return out
	}
	for _, key := range []string{"detail", "error"} {
		if msg, ok := payload[key].(string); ok && strings.TrimSpace(msg) != "" {
			out.Message = msg
			return out
		}
	}
	return out
}
