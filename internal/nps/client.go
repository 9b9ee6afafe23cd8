// Package nps is a client for the National Park Service developer API.
// It fetches every page of the parks collection for a filter and shapes
// the records for the MCP tools.
package nps

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/olgasafonova/nps-mcp-server/internal/base"
	"github.com/olgasafonova/nps-mcp-server/internal/config"
	apierrors "github.com/olgasafonova/nps-mcp-server/internal/errors"
	"github.com/olgasafonova/nps-mcp-server/internal/infra"
	"github.com/olgasafonova/nps-mcp-server/metrics"
	"github.com/olgasafonova/nps-mcp-server/tracing"
)

// APIKeyHeader carries the developer key on every request
const APIKeyHeader = "X-Api-Key"

// maxErrorBody bounds how much of an error response ends up in an error message
const maxErrorBody = 200

// Client provides access to the NPS API
type Client struct {
	*base.Client

	baseURL          string
	apiKey           string
	userAgent        string
	maxPages         int
	operationTimeout time.Duration
}

// ClientOption configures the Client (re-export base.ClientOption for compatibility)
type ClientOption = base.ClientOption

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) ClientOption {
	return base.WithHTTPClient(c)
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) ClientOption {
	return base.WithLogger(l)
}

// WithCircuitBreaker sets a custom circuit breaker
func WithCircuitBreaker(cb *infra.CircuitBreaker) ClientOption {
	return base.WithCircuitBreaker(cb)
}

// NewClient creates an NPS client from cfg. Options are applied after the
// config-derived defaults, so they can override the timeout or throttle.
func NewClient(cfg *config.Config, opts ...ClientOption) *Client {
	defaults := []ClientOption{
		base.WithTimeout(cfg.Timeout),
		base.WithThrottle(infra.NewThrottle(cfg.RateLimitPerHour)),
	}

	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = config.DefaultMaxPages
	}
	opTimeout := cfg.OperationTimeout
	if opTimeout <= 0 {
		opTimeout = config.DefaultOperationTimeout
	}

	return &Client{
		Client:           base.NewClient(append(defaults, opts...)...),
		baseURL:          cfg.BaseURL,
		apiKey:           cfg.APIKey,
		userAgent:        cfg.UserAgent,
		maxPages:         maxPages,
		operationTimeout: opTimeout,
	}
}

// Fetch issues one GET against resource with params and decodes the page.
// Non-2xx answers become *errors.UpstreamHTTPError, undecodable bodies
// *errors.MalformedResponseError, transport failures *errors.NetworkError.
func (c *Client) Fetch(ctx context.Context, resource string, params url.Values) (*PageResponse, error) {
	reqURL := c.baseURL + "/" + resource
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	body, statusCode, err := c.DoRequest(ctx, base.RequestConfig{
		URL:       reqURL,
		Resource:  resource,
		UserAgent: c.userAgent,
		Headers:   map[string]string{APIKeyHeader: c.apiKey},
	})
	if err != nil {
		metrics.RecordUpstreamError(resource, errorKind(err))
		return nil, err
	}

	if statusCode < 200 || statusCode > 299 {
		err := &apierrors.UpstreamHTTPError{
			Resource:   resource,
			StatusCode: statusCode,
			Body:       errorMessage(body),
		}
		metrics.RecordUpstreamError(resource, apierrors.Kind(err))
		return nil, err
	}

	page, err := decodePage(resource, body)
	if err != nil {
		metrics.RecordUpstreamError(resource, apierrors.Kind(err))
		return nil, err
	}
	return page, nil
}

// decodePage parses a page body, rejecting bodies without data or total
func decodePage(resource string, body []byte) (*PageResponse, error) {
	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &apierrors.MalformedResponseError{Resource: resource, Reason: "invalid JSON", Err: err}
	}
	if env.Data == nil {
		return nil, &apierrors.MalformedResponseError{Resource: resource, Reason: "missing data"}
	}
	if env.Total == nil {
		return nil, &apierrors.MalformedResponseError{Resource: resource, Reason: "missing total"}
	}

	page := &PageResponse{
		Total: int(*env.Total),
		Data:  *env.Data,
	}
	if env.Start != nil {
		page.Start = int(*env.Start)
	}
	if env.Limit != nil {
		page.Limit = int(*env.Limit)
	}
	return page, nil
}

// errorMessage prefers the NPS error envelope's message over the raw body
func errorMessage(body []byte) string {
	var apiErr apiErrorBody
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		if apiErr.Error.Code != "" {
			return base.Truncate(apiErr.Error.Code+": "+apiErr.Error.Message, maxErrorBody)
		}
		return base.Truncate(apiErr.Error.Message, maxErrorBody)
	}
	return base.Truncate(string(body), maxErrorBody)
}

// errorKind labels an error for the upstream error metric
func errorKind(err error) string {
	if infra.IsCircuitOpen(err) {
		return "circuit_open"
	}
	return apierrors.Kind(err)
}

// FetchParkDetails returns every park matching filter as a full record,
// in upstream page order.
func (c *Client) FetchParkDetails(ctx context.Context, filter Filter) ([]Park, error) {
	return c.paginate(ctx, "park_details", filter)
}

// FetchParksList returns the summaries of every park in one state.
func (c *Client) FetchParksList(ctx context.Context, stateCode string) ([]ParkSummary, error) {
	parks, err := c.paginate(ctx, "parks_list", Filter{StateCodes: []string{stateCode}})
	if err != nil {
		return nil, err
	}
	return Summarize(parks), nil
}

// paginate requests pages at offsets 0, 50, 100, ... until the offset
// reaches the reported total. Any page failure aborts the operation and
// no partial result is returned.
func (c *Client) paginate(ctx context.Context, operation string, filter Filter) ([]Park, error) {
	ctx, cancel := context.WithTimeout(ctx, c.operationTimeout)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, "nps."+operation)
	defer span.End()
	tracing.AddFilterAttributes(span, filter.ParkCodes, filter.StateCodes)

	logger := c.Logger.With("operation", operation, "filter", filter.String())
	state := stateIdle
	transition := func(to paginationState, offset int) {
		logger.Debug("Pagination state change", "from", state.String(), "to", to.String(), "offset", offset)
		span.AddEvent(to.String())
		state = to
	}

	parks := make([]Park, 0)
	seen := make(map[string]struct{})
	offset, pages, total := 0, 0, 0

	for {
		transition(stateFetching, offset)
		page, err := c.fetchPage(ctx, filter, offset)
		pages++
		if err != nil {
			transition(stateFailed, offset)
			tracing.RecordError(span, err)
			metrics.PagesPerOperation.WithLabelValues(operation).Observe(float64(pages))
			return nil, fmt.Errorf("fetching %s page at offset %d: %w", ResourceParks, offset, err)
		}

		transition(stateAccumulating, offset)
		total = page.Total
		for _, p := range page.Data {
			if code := p.Code(); code != "" {
				if _, dup := seen[code]; dup {
					logger.Warn("Duplicate park across pages dropped", "park_code", code, "offset", offset)
					continue
				}
				seen[code] = struct{}{}
			}
			parks = append(parks, p)
		}

		// refetching the same offset cannot make progress, and stopping
		// here would hand back a silently truncated result
		if len(page.Data) == 0 && offset < total {
			transition(stateFailed, offset)
			err := &apierrors.MalformedResponseError{
				Resource: ResourceParks,
				Reason:   fmt.Sprintf("empty page at offset %d before total %d", offset, total),
			}
			logger.Warn("Empty page before reported total", "offset", offset, "total", total, "fetched", len(parks))
			tracing.RecordError(span, err)
			metrics.PagesPerOperation.WithLabelValues(operation).Observe(float64(pages))
			return nil, err
		}

		offset += PageSize
		if offset >= total {
			break
		}
		if pages >= c.maxPages {
			transition(stateFailed, offset)
			err := &apierrors.PaginationLimitError{MaxPages: c.maxPages, Fetched: len(parks), Total: total}
			tracing.RecordError(span, err)
			metrics.PagesPerOperation.WithLabelValues(operation).Observe(float64(pages))
			return nil, err
		}
	}

	transition(stateDone, offset)
	metrics.PagesPerOperation.WithLabelValues(operation).Observe(float64(pages))
	logger.Debug("Pagination complete", "pages", pages, "total", total, "records", len(parks))
	return parks, nil
}

// fetchPage fetches one page inside its own span
func (c *Client) fetchPage(ctx context.Context, filter Filter, offset int) (*PageResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "nps.fetch_page", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	tracing.AddPageAttributes(span, ResourceParks, offset, PageSize)

	page, err := c.Fetch(ctx, ResourceParks, filter.pageParams(offset))
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	tracing.AddPageResult(span, len(page.Data), page.Total)
	return page, nil
}
