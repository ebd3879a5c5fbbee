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

	"go.uber.org/zap"
)

// Envelope is the response shape every backend endpoint returns.
type Envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	ErrMessage string          `json:"errMessage,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// Decode unmarshals the data payload into dst. Empty payloads are a no-op.
func (e Envelope) Decode(dst any) error {
	if len(bytes.TrimSpace(e.Data)) == 0 || string(bytes.TrimSpace(e.Data)) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, dst); err != nil {
		return fmt.Errorf("client: decode data: %w", err)
	}
	return nil
}

// FailureMessage returns the backend supplied reason for an unsuccessful
// response, preferring errMessage over message.
func (e Envelope) FailureMessage() string {
	if msg := strings.TrimSpace(e.ErrMessage); msg != "" {
		return msg
	}
	return strings.TrimSpace(e.Message)
}

// Requester is the opaque request boundary the engines talk to.
type Requester interface {
	Get(ctx context.Context, path string, query url.Values) (Envelope, error)
	Post(ctx context.Context, path string, body any) (Envelope, error)
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("client: unexpected status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("client: unexpected status %d", e.Code)
}

// Option customises the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// WithToken sets the bearer token attached to every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithLogger routes request logging through logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUploadPath overrides the multipart upload endpoint.
func WithUploadPath(path string) Option {
	return func(c *Client) {
		if strings.TrimSpace(path) != "" {
			c.uploadPath = path
		}
	}
}

// Client talks to the backend API using JSON requests and the Envelope
// response contract.
type Client struct {
	baseURL    string
	token      string
	uploadPath string
	http       *http.Client
	logger     *zap.Logger
}

var _ Requester = (*Client)(nil)

// New constructs a client rooted at baseURL.
func New(baseURL string, options ...Option) (*Client, error) {
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:    normalized,
		uploadPath: "/common/uploadFile",
		http:       &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c, nil
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("client: base url is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("client: invalid base url %q", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// Get issues a GET request with optional query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (Envelope, error) {
	target := c.resolve(path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Envelope{}, fmt.Errorf("client: build request: %w", err)
	}
	return c.do(req)
}

// Post issues a JSON POST request.
func (c *Client) Post(ctx context.Context, path string, body any) (Envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Envelope{}, fmt.Errorf("client: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(path), bytes.NewReader(payload))
	if err != nil {
		return Envelope{}, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) do(req *http.Request) (Envelope, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Envelope{}, fmt.Errorf("client: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Envelope{}, fmt.Errorf("client: read response: %w", err)
	}
	c.logger.Debug("backend request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Envelope{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("client: decode envelope: %w", err)
	}
	return envelope, nil
}
