// Package infra provides resilience primitives shared by the NPS client:
// a circuit breaker and an outbound request throttle. Neither retries a
// request; both only decide whether and when one may start.
package infra

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CircuitState represents the current state of the circuit breaker
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation
	CircuitOpen                         // Failing fast, rejecting requests
	CircuitHalfOpen                     // Letting trial requests through
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Circuit breaker defaults
const (
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 30 * time.Second
	DefaultHalfOpenMax      = 2
)

// BreakerOption configures a CircuitBreaker
type BreakerOption func(*CircuitBreaker)

// WithFailureThreshold sets how many consecutive failures open the circuit
func WithFailureThreshold(n int) BreakerOption {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.failureThreshold = n
		}
	}
}

// WithResetTimeout sets how long the circuit stays open before admitting trial requests
func WithResetTimeout(d time.Duration) BreakerOption {
	return func(cb *CircuitBreaker) {
		if d > 0 {
			cb.resetTimeout = d
		}
	}
}

// WithHalfOpenMax sets how many trial requests are allowed while half-open
func WithHalfOpenMax(n int) BreakerOption {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.halfOpenMax = n
		}
	}
}

// WithStateListener registers a callback invoked on every state change.
// The callback runs with the breaker lock held and must not call back into it.
func WithStateListener(fn func(from, to CircuitState)) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.onChange = fn
	}
}

// withClock replaces time.Now, for tests
func withClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

// CircuitBreaker fails fast once the upstream has produced a run of
// consecutive failures, then lets a few trial requests through after resetTimeout.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	resetTimeout     time.Duration
	halfOpenMax      int
	onChange         func(from, to CircuitState)
	now              func() time.Time

	state            CircuitState
	consecutiveFails int
	lastFailure      time.Time
	halfOpenCount    int
}

// NewCircuitBreaker creates a closed circuit breaker
func NewCircuitBreaker(opts ...BreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		failureThreshold: DefaultFailureThreshold,
		resetTimeout:     DefaultResetTimeout,
		halfOpenMax:      DefaultHalfOpenMax,
		now:              time.Now,
		state:            CircuitClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Allow reports whether a request may proceed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true

	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) < cb.resetTimeout {
			return false
		}
		cb.transition(CircuitHalfOpen)
		cb.halfOpenCount = 1
		return true

	case CircuitHalfOpen:
		if cb.halfOpenCount < cb.halfOpenMax {
			cb.halfOpenCount++
			return true
		}
		return false

	default:
		return false
	}
}

// RecordSuccess resets the failure run and closes a half-open circuit
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	if cb.state == CircuitHalfOpen {
		cb.transition(CircuitClosed)
		cb.halfOpenCount = 0
	}
}

// Abandon gives back a half-open trial slot taken by a request that ended
// without an upstream verdict (caller canceled, deadline hit while queued).
func (cb *CircuitBreaker) Abandon() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen && cb.halfOpenCount > 0 {
		cb.halfOpenCount--
	}
}

// RecordFailure extends the failure run, opening the circuit at the threshold
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.lastFailure = cb.now()

	switch cb.state {
	case CircuitClosed:
		if cb.consecutiveFails >= cb.failureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.transition(CircuitOpen)
		cb.halfOpenCount = 0
	}
}

// transition must be called with mu held
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	if cb.onChange != nil && from != to {
		cb.onChange(from, to)
	}
}

// State returns the current circuit state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the breaker
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStats{
		State:            cb.state.String(),
		ConsecutiveFails: cb.consecutiveFails,
		LastFailure:      cb.lastFailure,
		RetryAt:          cb.retryAtLocked(),
	}
}

func (cb *CircuitBreaker) retryAtLocked() time.Time {
	if cb.state != CircuitOpen {
		return time.Time{}
	}
	return cb.lastFailure.Add(cb.resetTimeout)
}

// Check returns a *CircuitOpenError when the circuit rejects the request.
func (cb *CircuitBreaker) Check() error {
	if cb.Allow() {
		return nil
	}
	stats := cb.Stats()
	return &CircuitOpenError{
		State:    stats.State,
		RetryAt:  stats.RetryAt,
		Failures: stats.ConsecutiveFails,
	}
}

// CircuitBreakerStats contains circuit breaker statistics
type CircuitBreakerStats struct {
	State            string    `json:"state"`
	ConsecutiveFails int       `json:"consecutive_failures"`
	LastFailure      time.Time `json:"last_failure,omitempty"`
	RetryAt          time.Time `json:"retry_at,omitempty"`
}

// CircuitOpenError is returned when the circuit breaker rejects a request
type CircuitOpenError struct {
	State    string
	RetryAt  time.Time
	Failures int
}

func (e *CircuitOpenError) Error() string {
	if e.RetryAt.IsZero() {
		return fmt.Sprintf("circuit breaker is %s after %d consecutive failures: NPS API is experiencing issues", e.State, e.Failures)
	}
	return fmt.Sprintf("circuit breaker is %s after %d consecutive failures: NPS API is experiencing issues, retry after %s",
		e.State, e.Failures, e.RetryAt.Format(time.RFC3339))
}

// IsCircuitOpen returns true if err wraps a CircuitOpenError
func IsCircuitOpen(err error) bool {
	var target *CircuitOpenError
	return errors.As(err, &target)
}

// Throttle spaces outbound requests to stay under an hourly quota.
type Throttle struct {
	limiter *rate.Limiter
}

// DefaultThrottleBurst lets a short paginated operation start without waiting
const DefaultThrottleBurst = 10

// NewThrottle creates a throttle allowing perHour requests per hour.
// perHour <= 0 yields an unlimited throttle.
func NewThrottle(perHour int) *Throttle {
	if perHour <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	perSecond := float64(perHour) / time.Hour.Seconds()
	burst := int(math.Min(float64(perHour), DefaultThrottleBurst))
	return &Throttle{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a request may start. It reports whether the caller had
// to wait, so callers can count throttled requests.
func (t *Throttle) Wait(ctx context.Context) (waited bool, err error) {
	if t.limiter.Allow() {
		return false, nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		// The limiter refuses up front a wait that would outlast the deadline
		if ctx.Err() == nil {
			err = fmt.Errorf("%v: %w", err, context.DeadlineExceeded)
		}
		return true, fmt.Errorf("rate limiter wait: %w", err)
	}
	return true, nil
}

// Unlimited reports whether the throttle never delays requests
func (t *Throttle) Unlimited() bool {
	return t.limiter.Limit() == rate.Inf
}
