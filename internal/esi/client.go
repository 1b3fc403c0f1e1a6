// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package esi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/killstream/internal/logging"
	"github.com/tomtom215/killstream/internal/metrics"
	"github.com/tomtom215/killstream/internal/models"
)

// DefaultBaseURL is the public identifier service.
const DefaultBaseURL = "https://esi.evetech.net/latest"

// maxBodySize caps upstream responses; killmails with large attacker lists
// stay well below it.
const maxBodySize = 8 << 20

// StatusError is returned for any non-2xx upstream response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned %d", e.URL, e.StatusCode)
}

// StatusCode extracts the HTTP status from err, or 0 if err carries none.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL           string
	UserAgent         string
	CompatibilityDate string
	Timeout           time.Duration
	RateLimit         float64 // requests per second, 0 = unlimited
	Burst             int
	BreakerFailures   uint32
	BreakerTimeout    time.Duration
	HTTPClient        *http.Client
}

// Client talks to the identifier service. Every request passes a client-side
// rate limiter and a circuit breaker, so a failing upstream is short-circuited
// instead of stalling every worker.
type Client struct {
	base      string
	userAgent string
	compat    string
	http      *http.Client
	limiter   *rate.Limiter
	cb        *gobreaker.CircuitBreaker[[]byte]
	name      string
}

// NewClient builds a Client from cfg, filling unset fields with defaults.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 10
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	name := "esi"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	failures := cfg.BreakerFailures
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A 4xx other than 429 is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			code := StatusCode(err)
			return code >= 400 && code < 500 && code != http.StatusTooManyRequests
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Client{
		base:      strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		compat:    cfg.CompatibilityDate,
		http:      httpClient,
		limiter:   rate.NewLimiter(limit, burst),
		cb:        cb,
		name:      name,
	}
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string {
	return c.base
}

// Get fetches ref, which is either a path under the base URL or an absolute
// URL (detail references arrive absolute).
func (c *Client) Get(ctx context.Context, ref string) ([]byte, error) {
	return c.execute(ctx, http.MethodGet, c.resolve(ref), nil)
}

// Post sends body as JSON to a path under the base URL.
func (c *Client) Post(ctx context.Context, path string, body any) ([]byte, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return c.execute(ctx, http.MethodPost, c.resolve(path), buf)
}

// FetchKillmail retrieves a detail payload by its reference URL.
func (c *Client) FetchKillmail(ctx context.Context, ref string) (*models.Killmail, error) {
	if ref == "" {
		return nil, fmt.Errorf("fetch killmail: empty reference")
	}
	body, err := c.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetch killmail: %w", err)
	}
	var km models.Killmail
	if err := json.Unmarshal(body, &km); err != nil {
		return nil, fmt.Errorf("decode killmail: %w", err)
	}
	return &km, nil
}

func (c *Client) resolve(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return c.base + "/" + strings.TrimLeft(ref, "/")
}

func (c *Client) execute(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	out, err := c.cb.Execute(func() ([]byte, error) {
		return c.do(ctx, method, url, body)
	})
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "failure").Inc()
	}
	return out, err
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.compat != "" {
		req.Header.Set("X-Compatibility-Date", c.compat)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
