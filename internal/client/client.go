// Package client is the Go client for the portfolio admin HTTP API. It is
// used by the CLI and by the session manager to verify credentials.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"portfolio.admin/internal/auth"
	"portfolio.admin/internal/models"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrBadRequest     = errors.New("bad request")
	ErrRateLimited    = errors.New("rate limited")
	ErrQuotaExhausted = errors.New("quota exhausted")
	ErrServer         = errors.New("server error")
)

// APIError is a non-2xx response. It matches the sentinel errors above
// with errors.Is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrBadRequest:
		return e.Status == http.StatusBadRequest
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrQuotaExhausted:
		return e.Status == http.StatusPaymentRequired
	case ErrServer:
		return e.Status >= http.StatusInternalServerError
	}
	return false
}

// CredentialSource supplies credentials for privileged calls.
// *session.Manager implements it.
type CredentialSource interface {
	Credential() auth.Credentials
}

type staticCredentials auth.Credentials

func (s staticCredentials) Credential() auth.Credentials { return auth.Credentials(s) }

// Client talks to one server.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	creds CredentialSource
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 90 * time.Second},
		creds:   staticCredentials{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetCredentials installs the source consulted on every privileged call.
func (c *Client) SetCredentials(src CredentialSource) {
	c.mu.Lock()
	c.creds = src
	c.mu.Unlock()
}

// UseToken is shorthand for a fixed token.
func (c *Client) UseToken(token string) {
	c.SetCredentials(staticCredentials{Token: token})
}

func (c *Client) credential() auth.Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds.Credential()
}

// LoginResult is the verification outcome. Token is empty when the server
// does not issue tokens.
type LoginResult struct {
	Valid     bool       `json:"valid"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Login verifies secret with the server.
func (c *Client) Login(ctx context.Context, secret string) (*LoginResult, error) {
	var out LoginResult
	err := c.post(ctx, "/functions/v1/admin-auth", map[string]string{"action": "verify", "secret": secret}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyCredentials re-validates stored credentials.
func (c *Client) VerifyCredentials(ctx context.Context, creds auth.Credentials) (bool, error) {
	var out LoginResult
	body := map[string]string{"action": "verify", "secret": creds.Secret, "token": creds.Token}
	if err := c.post(ctx, "/functions/v1/admin-auth", body, &out); err != nil {
		return false, err
	}
	return out.Valid, nil
}

// Refresh exchanges token for a new one.
func (c *Client) Refresh(ctx context.Context, token string) (*LoginResult, error) {
	var out LoginResult
	err := c.post(ctx, "/functions/v1/admin-auth", map[string]string{"action": "refresh", "token": token}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.post(ctx, "/functions/v1/admin-auth", map[string]string{"action": "logout", "token": token}, nil)
}

type dataCall struct {
	Action string         `json:"action"`
	Table  string         `json:"table"`
	ID     string         `json:"id,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
	Secret string         `json:"secret,omitempty"`
	Token  string         `json:"token,omitempty"`
}

type dataResult struct {
	Data json.RawMessage `json:"data"`
}

// Execute runs a raw Data Proxy call and returns the undecoded data field.
func (c *Client) Execute(ctx context.Context, action, table, id string, data map[string]any) (json.RawMessage, error) {
	creds := c.credential()
	var out dataResult
	err := c.post(ctx, "/functions/v1/admin-data", dataCall{
		Action: action,
		Table:  table,
		ID:     id,
		Data:   data,
		Secret: creds.Secret,
		Token:  creds.Token,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) List(ctx context.Context, table string) ([]map[string]any, error) {
	return decodeAs[[]map[string]any](c.Execute(ctx, "list", table, "", nil))
}

func (c *Client) Get(ctx context.Context, table, id string) (map[string]any, error) {
	return decodeAs[map[string]any](c.Execute(ctx, "get", table, id, nil))
}

func (c *Client) Create(ctx context.Context, table string, data map[string]any) (map[string]any, error) {
	return decodeAs[map[string]any](c.Execute(ctx, "create", table, "", data))
}

func (c *Client) Update(ctx context.Context, table, id string, data map[string]any) (map[string]any, error) {
	return decodeAs[map[string]any](c.Execute(ctx, "update", table, id, data))
}

func (c *Client) Delete(ctx context.Context, table, id string) error {
	_, err := c.Execute(ctx, "delete", table, id, nil)
	return err
}

// ListAs decodes a collection into typed records.
func ListAs[T any](ctx context.Context, c *Client, table string) ([]T, error) {
	return decodeAs[[]T](c.Execute(ctx, "list", table, "", nil))
}

func decodeAs[T any](raw json.RawMessage, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decoding response: %w", err)
	}
	return out, nil
}

func (c *Client) GenerateText(ctx context.Context, req models.TextRequest) (string, error) {
	creds := c.credential()
	body := struct {
		models.TextRequest
		Secret string `json:"secret,omitempty"`
		Token  string `json:"token,omitempty"`
	}{req, creds.Secret, creds.Token}

	var out models.TextResponse
	if err := c.post(ctx, "/functions/v1/generate-content", body, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (c *Client) GenerateImage(ctx context.Context, req models.ImageRequest) (string, error) {
	creds := c.credential()
	body := struct {
		models.ImageRequest
		Secret string `json:"secret,omitempty"`
		Token  string `json:"token,omitempty"`
	}{req, creds.Secret, creds.Token}

	var out models.ImageResponse
	if err := c.post(ctx, "/functions/v1/generate-thumbnail", body, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// PublicList reads a public collection without credentials.
func (c *Client) PublicList(ctx context.Context, table string) ([]map[string]any, error) {
	var out dataResult
	if err := c.do(ctx, http.MethodGet, "/api/content/"+table, nil, &out); err != nil {
		return nil, err
	}
	return decodeAs[[]map[string]any](out.Data, nil)
}

func (c *Client) VerseOfTheDay(ctx context.Context) (map[string]any, error) {
	var out dataResult
	if err := c.do(ctx, http.MethodGet, "/api/verse-of-the-day", nil, &out); err != nil {
		return nil, err
	}
	return decodeAs[map[string]any](out.Data, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
