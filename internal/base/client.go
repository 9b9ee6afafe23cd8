// Package base provides the HTTP plumbing shared by upstream API clients:
// connection pooling, concurrency limiting, throttling and circuit breaking.
// It performs exactly one attempt per request.
package base

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/olgasafonova/nps-mcp-server/internal/errors"
	"github.com/olgasafonova/nps-mcp-server/internal/infra"
	"github.com/olgasafonova/nps-mcp-server/metrics"
)

const (
	// DefaultTimeout for API requests
	DefaultTimeout = 30 * time.Second

	// MaxConcurrentRequests limits parallel API calls
	MaxConcurrentRequests = 5

	// MaxResponseSize caps how much of a response body is read
	MaxResponseSize = 16 << 20

	// DefaultUserAgent is sent when a request does not set its own
	DefaultUserAgent = "nps-mcp-server/1.0"
)

// Client provides common HTTP client infrastructure
type Client struct {
	HTTPClient     *http.Client
	Logger         *slog.Logger
	CircuitBreaker *infra.CircuitBreaker
	Throttle       *infra.Throttle
	Semaphore      chan struct{}
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.HTTPClient = c
	}
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) ClientOption {
	return func(client *Client) {
		client.Logger = l
	}
}

// WithTimeout replaces the HTTP client with a pooled one using the given timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		if d > 0 {
			client.HTTPClient = newHTTPClient(d)
		}
	}
}

// WithThrottle sets the outbound throttle
func WithThrottle(t *infra.Throttle) ClientOption {
	return func(client *Client) {
		client.Throttle = t
	}
}

// WithCircuitBreaker sets a custom circuit breaker
func WithCircuitBreaker(cb *infra.CircuitBreaker) ClientOption {
	return func(client *Client) {
		client.CircuitBreaker = cb
	}
}

// NewClient creates a new base client with default settings
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		HTTPClient: newHTTPClient(DefaultTimeout),
		Logger:     slog.Default(),
		CircuitBreaker: infra.NewCircuitBreaker(infra.WithStateListener(func(_, to infra.CircuitState) {
			metrics.SetCircuitState(int(to))
		})),
		Throttle:  infra.NewThrottle(0),
		Semaphore: make(chan struct{}, MaxConcurrentRequests),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Close releases idle connections held by the client
func (c *Client) Close() {
	if c.HTTPClient != nil {
		c.HTTPClient.CloseIdleConnections()
	}
}

// CircuitBreakerStats returns the current circuit breaker state
func (c *Client) CircuitBreakerStats() infra.CircuitBreakerStats {
	return c.CircuitBreaker.Stats()
}

// AcquireSlot blocks until a request slot is available or context is canceled
func (c *Client) AcquireSlot(ctx context.Context) error {
	select {
	case c.Semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context canceled while waiting for request slot: %w", ctx.Err())
	}
}

// ReleaseSlot releases a request slot
func (c *Client) ReleaseSlot() {
	<-c.Semaphore
}

// RequestConfig configures a single HTTP request
type RequestConfig struct {
	URL       string
	Resource  string            // upstream collection name, used for errors and metrics
	UserAgent string            // defaults to DefaultUserAgent
	Headers   map[string]string // extra headers, e.g. API keys
}

// DoRequest performs a single GET. Transport failures come back as
// *errors.NetworkError and a caller giving up as its wrapped context error;
// any HTTP response, whatever its status, is returned to the caller with its
// body for interpretation. Upstream health (transport failures, 429 and 5xx)
// is recorded with the circuit breaker. A request that ends without an
// upstream verdict gives its breaker slot back.
func (c *Client) DoRequest(ctx context.Context, cfg RequestConfig) ([]byte, int, error) {
	if err := c.CircuitBreaker.Check(); err != nil {
		return nil, 0, err
	}

	settled := false
	defer func() {
		if !settled {
			c.CircuitBreaker.Abandon()
		}
	}()
	report := func(healthy bool) {
		settled = true
		if healthy {
			c.CircuitBreaker.RecordSuccess()
		} else {
			c.CircuitBreaker.RecordFailure()
		}
	}

	if err := c.AcquireSlot(ctx); err != nil {
		return nil, 0, canceled(cfg.Resource, err)
	}
	defer c.ReleaseSlot()

	waited, err := c.Throttle.Wait(ctx)
	if waited {
		metrics.RateLimitWaits.Inc()
	}
	if err != nil {
		return nil, 0, canceled(cfg.Resource, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	} else {
		req.Header.Set("User-Agent", DefaultUserAgent)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamCall(cfg.Resource, time.Since(start).Seconds(), 0)
		// A caller giving up is not an upstream health signal
		if ctx.Err() != nil {
			return nil, 0, canceled(cfg.Resource, ctx.Err())
		}
		report(false)
		c.Logger.Warn("NPS API request failed",
			"resource", cfg.Resource,
			"error", err)
		return nil, 0, &apierrors.NetworkError{Resource: cfg.Resource, Err: err}
	}

	body, err := readAndClose(resp)
	metrics.RecordUpstreamCall(cfg.Resource, time.Since(start).Seconds(), resp.StatusCode)
	if err != nil {
		if ctx.Err() != nil {
			return nil, resp.StatusCode, canceled(cfg.Resource, ctx.Err())
		}
		report(false)
		return nil, resp.StatusCode, &apierrors.NetworkError{Resource: cfg.Resource, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	report(!unhealthyStatus(resp.StatusCode))

	c.Logger.Debug("NPS API request completed",
		"resource", cfg.Resource,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start))

	return body, resp.StatusCode, nil
}

// unhealthyStatus reports whether a status counts against the upstream
func unhealthyStatus(code int) bool {
	return (&apierrors.UpstreamHTTPError{StatusCode: code}).Temporary()
}

// canceled wraps a context error so it stays distinct from upstream failures
func canceled(resource string, err error) error {
	return fmt.Errorf("%s request canceled: %w", resource, err)
}

// errResponseTooLarge is returned when a body exceeds MaxResponseSize
var errResponseTooLarge = errors.New("response exceeds maximum size")

// readAndClose reads the response body (up to MaxResponseSize) and closes it
func readAndClose(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("%w (%d bytes)", errResponseTooLarge, MaxResponseSize)
	}
	return body, nil
}

// Truncate shortens a string to maxLen, adding "..." if truncated
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// newHTTPClient creates an HTTP client with pooled transport settings
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   MaxConcurrentRequests,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
