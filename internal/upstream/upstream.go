// Package upstream is the HTTP client for the backend API the gateway
// fronts: generic request forwarding plus the typed auth endpoints
// (login, logout, refresh, verify) the session layer depends on.
package upstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxAuthBodySize bounds how much of an upstream auth response body is read
// when extracting tokens and error details.
const maxAuthBodySize = 1 << 20

// Client talks to the backend API.
type Client struct {
	base       string
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

// New creates an upstream client from configuration.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: BaseURL is required", ErrInvalidConfig)
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: BaseURL must be an absolute URL", ErrInvalidConfig)
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/auth/login"
	}
	if cfg.LogoutPath == "" {
		cfg.LogoutPath = "/auth/logout"
	}
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = "/auth/refresh"
	}
	if cfg.VerifyPath == "" {
		cfg.VerifyPath = "/auth/verify"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &Client{
		base:       strings.TrimSuffix(cfg.BaseURL, "/"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MustNew creates an upstream client that panics on invalid config.
func MustNew(cfg Config, opts ...Option) *Client {
	c, err := New(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Do forwards a request to the backend. The path is appended to the base
// URL as-is, so it may carry its own query string. Headers are cloned so
// the caller can reuse them for a retry.
func (c *Client) Do(ctx context.Context, method, path string, header http.Header, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, err
	}
	if header != nil {
		req.Header = header.Clone()
	}
	return c.httpClient.Do(req)
}

// Healthcheck probes the backend base URL. Any HTTP response counts as
// reachable; only transport failures are reported.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.base, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxAuthBodySize))
	return nil
}

// endpoint joins the base URL and path without escaping, preserving any
// query string the path carries.
func (c *Client) endpoint(path string) string {
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	return c.base + path
}
