// Package rtapi is the HTTP client for the RT REST backend.
//
// A Client is constructed explicitly and handed to the services that need it;
// there is no package-level instance. Identical GETs that are in flight at the
// same time share one round trip, while each caller can still give up on its
// own context.
package rtapi

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

	"golang.org/x/sync/singleflight"

	"rtadmin/internal/core"
	applog "rtadmin/internal/log"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 10 << 20
)

// Client talks to one backend base URL, e.g. http://localhost:8000/api.
type Client struct {
	base     *url.URL
	http     *http.Client
	logger   *applog.Logger
	inflight singleflight.Group

	Residents *ResidentsAPI
	Houses    *Resource[core.House]
	Histories *Resource[core.InhabitantHistory]
	Payments  *Resource[core.Payment]
	Expenses  *Resource[core.Expense]
	Reports   *ReportsAPI
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTransport keeps the default client but swaps its RoundTripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.Transport = rt
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithLogger(l *applog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.WithComponent(applog.ComponentAPI)
		}
	}
}

// New builds a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: defaultTimeout},
		logger: applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentAPI),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Residents = &ResidentsAPI{Resource: Resource[core.Resident]{c: c, path: "/residents"}}
	c.Houses = &Resource[core.House]{c: c, path: "/houses"}
	c.Histories = &Resource[core.InhabitantHistory]{c: c, path: "/inhabitant-histories"}
	c.Payments = &Resource[core.Payment]{c: c, path: "/payments"}
	c.Expenses = &Resource[core.Expense]{c: c, path: "/expenses"}
	c.Reports = &ReportsAPI{c: c}
	return c, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Ping checks that the backend answers at all; any HTTP response counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/houses"), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping %s: %w", c.base.Host, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

// get performs a de-duplicated GET. The shared round trip is detached from
// any single caller; each caller stops waiting when its own ctx is done.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	key := http.MethodGet + " " + path
	ch := c.inflight.DoChan(key, func() (any, error) {
		return c.roundTrip(context.WithoutCancel(ctx), http.MethodGet, path, nil, "")
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.DebugContext(ctx, "Shared in-flight request", applog.FieldPath, path)
		}
		return res.Val.([]byte), nil
	}
}

// sendJSON performs a mutating request with a JSON body.
func (c *Client) sendJSON(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}
	return c.roundTrip(ctx, method, path, body, "application/json")
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "Backend request failed",
			applog.FieldMethod, method,
			applog.FieldPath, path,
			applog.FieldError, err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}

	c.logger.DebugContext(ctx, "Backend request completed",
		applog.FieldMethod, method,
		applog.FieldPath, path,
		applog.FieldStatusCode, resp.StatusCode,
		applog.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, raw)
	}
	return raw, nil
}

// decodeOne accepts either a bare object or a {"data": {...}} envelope.
func decodeOne(raw []byte, out any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if inner, ok := unwrapData(raw); ok {
		raw = inner
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeList accepts a bare array or a {"data": [...]} envelope.
func decodeList[T any](raw []byte) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	out := make([]T, 0)
	if len(raw) == 0 {
		return out, nil
	}
	if raw[0] != '[' {
		inner, ok := unwrapData(raw)
		if !ok {
			return nil, errors.New("decode response: expected a list")
		}
		raw = inner
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// unwrapData extracts "data" from an envelope. An object that carries its
// own "id" is treated as the entity itself.
func unwrapData(raw []byte) ([]byte, bool) {
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	if _, hasID := env["id"]; hasID {
		return nil, false
	}
	data, ok := env["data"]
	if !ok || string(data) == "null" {
		return nil, false
	}
	return data, true
}
