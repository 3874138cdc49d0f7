// Package menuapi is the HTTP client for the remote menu service.
package menuapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"menu-telegram/models"
)

const (
	headerBusinessID = "X-Business-ID"
	headerRequestID  = "X-Request-ID"
	maxErrorBody     = 4 << 10
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API %d: %s %s: %s", e.Code, e.Method, e.Path, e.Body)
}

// NotFound reports whether the service answered 404.
func (e *StatusError) NotFound() bool { return e.Code == http.StatusNotFound }

// Client talks to the menu service on behalf of one business.
type Client struct {
	baseURL    string
	businessID string
	http       *http.Client
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New returns a client for baseURL acting for businessID.
func New(baseURL, businessID string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		businessID: businessID,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   15 * time.Second,
		},
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForBusiness returns a copy of c acting for another business. The HTTP
// client is shared.
func (c *Client) ForBusiness(businessID string) *Client {
	cp := *c
	cp.businessID = businessID
	return &cp
}

// BusinessID returns the tenant the client acts for.
func (c *Client) BusinessID() string { return c.businessID }

// List returns every menu of the business in server order.
func (c *Client) List(ctx context.Context) ([]models.Menu, error) {
	var menus []models.Menu
	if err := c.do(ctx, http.MethodGet, "/menus", nil, &menus); err != nil {
		return nil, fmt.Errorf("list menus: %w", err)
	}
	return menus, nil
}

// Get returns a single menu.
func (c *Client) Get(ctx context.Context, id string) (models.Menu, error) {
	var m models.Menu
	if err := c.do(ctx, http.MethodGet, menuPath(id), nil, &m); err != nil {
		return models.Menu{}, fmt.Errorf("get menu %s: %w", id, err)
	}
	return m, nil
}

// Create adds a menu and returns it as stored by the server.
func (c *Client) Create(ctx context.Context, in models.MenuInput) (models.Menu, error) {
	var m models.Menu
	if err := c.do(ctx, http.MethodPost, "/menus", in, &m); err != nil {
		return models.Menu{}, fmt.Errorf("create menu: %w", err)
	}
	return m, nil
}

// Update replaces the editable fields of a menu.
func (c *Client) Update(ctx context.Context, id string, in models.MenuInput) (models.Menu, error) {
	var m models.Menu
	if err := c.do(ctx, http.MethodPut, menuPath(id), in, &m); err != nil {
		return models.Menu{}, fmt.Errorf("update menu %s: %w", id, err)
	}
	return m, nil
}

// Delete removes a menu.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, menuPath(id), nil, nil); err != nil {
		return fmt.Errorf("delete menu %s: %w", id, err)
	}
	return nil
}

func menuPath(id string) string {
	return "/menus/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerBusinessID, c.businessID)
	req.Header.Set(headerRequestID, reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("menu api request failed", "method", method, "path", path, "request_id", reqID, "err", err)
		return err
	}
	defer resp.Body.Close()

	c.log.Debug("menu api request", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", reqID, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(text))
		if msg == "" {
			msg = "Unknown error"
		}
		se := &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: msg}
		if !se.NotFound() {
			c.log.Warn("menu api error", "method", method, "path", path, "status", resp.StatusCode,
				"request_id", reqID, "body", msg)
		}
		return se
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
