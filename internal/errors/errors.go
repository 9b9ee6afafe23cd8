// Package errors provides shared error types for the NPS client and its tools.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// NetworkError indicates the request never produced an HTTP response
// (DNS failure, refused connection, timeout).
type NetworkError struct {
	Resource string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.Resource, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// UpstreamHTTPError indicates the NPS API answered with a non-success status.
type UpstreamHTTPError struct {
	Resource   string
	StatusCode int
	Body       string // truncated response body, may be empty
}

func (e *UpstreamHTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("NPS API returned %d for %s: %s", e.StatusCode, e.Resource, e.Body)
	}
	return fmt.Sprintf("NPS API returned %d for %s", e.StatusCode, e.Resource)
}

// Temporary reports whether the status suggests the upstream is unhealthy
// rather than the request being wrong.
func (e *UpstreamHTTPError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// MalformedResponseError indicates a success response whose body could not be
// decoded or was missing required fields.
type MalformedResponseError struct {
	Resource string
	Reason   string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %s response: %s: %v", e.Resource, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed %s response: %s", e.Resource, e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// PaginationLimitError is returned when an operation would need more pages
// than the configured maximum.
type PaginationLimitError struct {
	MaxPages int
	Fetched  int // records accumulated before giving up
	Total    int // total reported by the last page
}

func (e *PaginationLimitError) Error() string {
	return fmt.Sprintf("pagination limit of %d pages reached after %d of %d records", e.MaxPages, e.Fetched, e.Total)
}

// ValidationError indicates invalid input parameters.
type ValidationError struct {
	Field   string // field name that failed validation
	Value   string // the invalid value
	Message string // human-readable error message
}

func (e *ValidationError) Error() string {
	if e.Field != "" && e.Value != "" {
		return fmt.Sprintf("validation failed for %s=%q: %s", e.Field, e.Value, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, value, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsNetwork returns true if err wraps a NetworkError.
func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// IsUpstreamHTTP returns true if err wraps an UpstreamHTTPError.
func IsUpstreamHTTP(err error) bool {
	var target *UpstreamHTTPError
	return errors.As(err, &target)
}

// StatusCode returns the upstream status carried by err, or 0.
func StatusCode(err error) int {
	var target *UpstreamHTTPError
	if errors.As(err, &target) {
		return target.StatusCode
	}
	return 0
}

// IsMalformed returns true if err wraps a MalformedResponseError.
func IsMalformed(err error) bool {
	var target *MalformedResponseError
	return errors.As(err, &target)
}

// IsPaginationLimit returns true if err wraps a PaginationLimitError.
func IsPaginationLimit(err error) bool {
	var target *PaginationLimitError
	return errors.As(err, &target)
}

// IsValidation returns true if err wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsCanceled returns true if err comes from the caller's context ending.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IsTemporary returns true if err suggests the upstream is unhealthy and a
// later call may succeed: transport failures, 429 and 5xx.
func IsTemporary(err error) bool {
	if IsNetwork(err) {
		return true
	}
	var target *UpstreamHTTPError
	return errors.As(err, &target) && target.Temporary()
}

// Kind returns a short label for metrics: network, canceled, http,
// malformed, pagination_limit, validation, or other. A client timeout inside
// a NetworkError stays network.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsNetwork(err):
		return "network"
	case IsCanceled(err):
		return "canceled"
	case IsUpstreamHTTP(err):
		return "http"
	case IsMalformed(err):
		return "malformed"
	case IsPaginationLimit(err):
		return "pagination_limit"
	case IsValidation(err):
		return "validation"
	default:
		return "other"
	}
}
