// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package courseapi is the HTTP client for the course platform backend.
//
// Every call takes an explicit Credential; the client itself holds no auth
// state and is safe for concurrent use by sessions with different viewers.
// Requests are never retried.
package courseapi

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

	"github.com/ManuGH/courseflow/internal/metrics"
	"github.com/ManuGH/courseflow/internal/platform/httpx"
	"github.com/ManuGH/courseflow/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"
)

const tracerName = "courseflow.courseapi"

// Client talks to the course platform REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// Options configures the client.
type Options struct {
	Timeout        time.Duration
	RateLimit      rate.Limit
	RateLimitBurst int
	UserAgent      string
	// HTTPClient replaces the hardened default client. It is used as-is.
	HTTPClient *http.Client
}

const (
	defaultTimeout        = 10 * time.Second
	defaultRateLimit      = 10
	defaultRateLimitBurst = 20
	defaultUserAgent      = "courseflow"
	maxErrorBody          = 4 << 10
)

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("courseapi: base URL is empty")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("courseapi: invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("courseapi: unsupported scheme %q", u.Scheme)
	}

	opts = normalizeOptions(opts)
	hc := opts.HTTPClient
	if hc == nil {
		hc = httpx.Instrument(httpx.NewClient(opts.Timeout))
	}

	return &Client{
		baseURL:    u,
		httpClient: hc,
		limiter:    rate.NewLimiter(opts.RateLimit, opts.RateLimitBurst),
		userAgent:  opts.UserAgent,
	}, nil
}

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}
	return opts
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// call describes one request. Route is the templated path used for metrics
// and span names; Path is the concrete one.
type call struct {
	op     string
	method string
	route  string
	path   string
	body   any
	out    any
}

func (c *Client) do(ctx context.Context, cred Credential, rc call) error {
	if !cred.Valid() {
		return &APIError{Sentinel: ErrNoCredential, Operation: rc.op}
	}

	ctx, span := telemetry.StartClientSpan(ctx, tracerName, "courseapi."+rc.op,
		telemetry.CallAttributes(rc.method, rc.route)...)
	err := c.exchange(ctx, cred, rc, span.SetAttributes)
	telemetry.EndSpan(span, err)
	return err
}

func (c *Client) exchange(ctx context.Context, cred Credential, rc call, annotate func(...attribute.KeyValue)) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return transportError(rc.op, err)
	}

	var body io.Reader
	if rc.body != nil {
		buf, err := json.Marshal(rc.body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", rc.op, err)
		}
		body = bytes.NewReader(buf)
	}

	target := c.baseURL.JoinPath(rc.path)
	req, err := http.NewRequestWithContext(ctx, rc.method, target.String(), body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", rc.op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", cred.Header())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordAPIRequest(rc.method, rc.route, 0, time.Since(start), err)
		return transportError(rc.op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.RecordAPIRequest(rc.method, rc.route, resp.StatusCode, time.Since(start), nil)
	annotate(telemetry.HTTPAttributes(rc.method, rc.route, resp.StatusCode)...)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Sentinel:  sentinelForStatus(resp.StatusCode),
			Operation: rc.op,
			Status:    resp.StatusCode,
			Message:   readErrorMessage(resp.Body),
		}
	}

	if rc.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	// An empty 2xx body leaves out at its zero value.
	if err := json.NewDecoder(resp.Body).Decode(rc.out); err != nil && !errors.Is(err, io.EOF) {
		if ctx.Err() != nil {
			return transportError(rc.op, ctx.Err())
		}
		return &APIError{Sentinel: ErrBadResponse, Operation: rc.op, Status: resp.StatusCode, Err: err}
	}
	return nil
}

// readErrorMessage extracts the backend's "error" or "detail" field.
func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	return ""
}

func seg(id ID) string {
	return url.PathEscape(string(id))
}
