package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for breaker tests
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// =============================================================================
// CircuitBreaker Tests
// =============================================================================

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker()

	if cb.failureThreshold != DefaultFailureThreshold {
		t.Errorf("failureThreshold = %d, want %d", cb.failureThreshold, DefaultFailureThreshold)
	}
	if cb.resetTimeout != DefaultResetTimeout {
		t.Errorf("resetTimeout = %v, want %v", cb.resetTimeout, DefaultResetTimeout)
	}
	if cb.halfOpenMax != DefaultHalfOpenMax {
		t.Errorf("halfOpenMax = %d, want %d", cb.halfOpenMax, DefaultHalfOpenMax)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestNewCircuitBreaker_Options(t *testing.T) {
	cb := NewCircuitBreaker(
		WithFailureThreshold(3),
		WithResetTimeout(10*time.Second),
		WithHalfOpenMax(1),
	)

	if cb.failureThreshold != 3 {
		t.Errorf("failureThreshold = %d, want 3", cb.failureThreshold)
	}
	if cb.resetTimeout != 10*time.Second {
		t.Errorf("resetTimeout = %v, want 10s", cb.resetTimeout)
	}
	if cb.halfOpenMax != 1 {
		t.Errorf("halfOpenMax = %d, want 1", cb.halfOpenMax)
	}
}

func TestNewCircuitBreaker_IgnoresNonPositiveOptions(t *testing.T) {
	cb := NewCircuitBreaker(WithFailureThreshold(0), WithResetTimeout(-1), WithHalfOpenMax(-5))

	if cb.failureThreshold != DefaultFailureThreshold {
		t.Errorf("failureThreshold = %d, want default", cb.failureThreshold)
	}
	if cb.resetTimeout != DefaultResetTimeout {
		t.Errorf("resetTimeout = %v, want default", cb.resetTimeout)
	}
	if cb.halfOpenMax != DefaultHalfOpenMax {
		t.Errorf("halfOpenMax = %d, want default", cb.halfOpenMax)
	}
}

func TestCircuitBreaker_TransitionToOpen(t *testing.T) {
	cb := NewCircuitBreaker(WithFailureThreshold(3))

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != CircuitClosed {
		t.Error("circuit should still be closed after 2 failures")
	}

	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Errorf("circuit should be open after 3 failures, got %v", cb.State())
	}
	if cb.Allow() {
		t.Error("open circuit should reject requests")
	}
}

func TestCircuitBreaker_HalfOpenLifecycle(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(
		WithFailureThreshold(2),
		WithResetTimeout(time.Minute),
		WithHalfOpenMax(2),
		withClock(clock.Now),
	)

	cb.RecordFailure()
	cb.RecordFailure()

	clock.Advance(59 * time.Second)
	if cb.Allow() {
		t.Fatal("circuit should stay open before the reset timeout")
	}

	clock.Advance(2 * time.Second)
	if !cb.Allow() {
		t.Fatal("first trial request should be allowed after the reset timeout")
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %v, want half-open", cb.State())
	}
	if !cb.Allow() {
		t.Error("second trial request should be allowed with halfOpenMax=2")
	}
	if cb.Allow() {
		t.Error("third trial request should be rejected with halfOpenMax=2")
	}

	cb.RecordSuccess()
	if cb.State() != CircuitClosed {
		t.Errorf("state = %v, want closed after a successful trial request", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(WithFailureThreshold(1), WithResetTimeout(time.Second), withClock(clock.Now))

	cb.RecordFailure()
	clock.Advance(2 * time.Second)
	cb.Allow()
	if cb.State() != CircuitHalfOpen {
		t.Fatal("circuit should be half-open")
	}

	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Errorf("state = %v, want open after a failed trial request", cb.State())
	}
}

func TestCircuitBreaker_RecordSuccessResetsFails(t *testing.T) {
	cb := NewCircuitBreaker(WithFailureThreshold(3))

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	if cb.State() != CircuitClosed {
		t.Error("non-consecutive failures should not open the circuit")
	}
	if got := cb.Stats().ConsecutiveFails; got != 2 {
		t.Errorf("ConsecutiveFails = %d, want 2", got)
	}
}

func TestCircuitBreaker_StateListener(t *testing.T) {
	clock := newFakeClock()
	var transitions []string
	cb := NewCircuitBreaker(
		WithFailureThreshold(1),
		WithResetTimeout(time.Second),
		withClock(clock.Now),
		WithStateListener(func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)

	cb.RecordFailure()
	clock.Advance(2 * time.Second)
	cb.Allow()
	cb.RecordSuccess()

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if strings.Join(transitions, ",") != strings.Join(want, ",") {
		t.Errorf("transitions = %v, want %v", transitions, want)
	}
}

func TestCircuitBreaker_Check(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(WithFailureThreshold(2), WithResetTimeout(30*time.Second), withClock(clock.Now))

	if err := cb.Check(); err != nil {
		t.Fatalf("closed circuit Check() = %v, want nil", err)
	}

	cb.RecordFailure()
	cb.RecordFailure()

	err := cb.Check()
	if err == nil {
		t.Fatal("open circuit Check() should fail")
	}
	if !IsCircuitOpen(err) {
		t.Errorf("IsCircuitOpen(%v) = false", err)
	}

	var openErr *CircuitOpenError
	if !errors.As(err, &openErr) {
		t.Fatal("error should be a *CircuitOpenError")
	}
	if openErr.Failures != 2 {
		t.Errorf("Failures = %d, want 2", openErr.Failures)
	}
	if want := clock.Now().Add(30 * time.Second); !openErr.RetryAt.Equal(want) {
		t.Errorf("RetryAt = %v, want %v", openErr.RetryAt, want)
	}
}

func TestCircuitBreaker_AbandonReturnsTrialSlot(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(
		WithFailureThreshold(1),
		WithResetTimeout(time.Second),
		WithHalfOpenMax(2),
		withClock(clock.Now),
	)

	cb.RecordFailure()
	clock.Advance(2 * time.Second)

	// Two trials admitted and both abandoned
	for i := 0; i < 2; i++ {
		if !cb.Allow() {
			t.Fatalf("trial %d should be admitted", i+1)
		}
		cb.Abandon()
	}

	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %v, want half-open", cb.State())
	}
	if !cb.Allow() {
		t.Fatal("abandoned slots should be available again")
	}
	cb.RecordSuccess()
	if cb.State() != CircuitClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_AbandonOutsideHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(WithFailureThreshold(1), WithHalfOpenMax(1))

	cb.Abandon()
	if cb.State() != CircuitClosed || cb.halfOpenCount != 0 {
		t.Errorf("Abandon on a closed circuit changed state: %v, %d", cb.State(), cb.halfOpenCount)
	}

	cb.RecordFailure()
	cb.Abandon()
	if cb.State() != CircuitOpen || cb.halfOpenCount != 0 {
		t.Errorf("Abandon on an open circuit changed state: %v, %d", cb.State(), cb.halfOpenCount)
	}
}

func TestCircuitBreaker_Stats(t *testing.T) {
	cb := NewCircuitBreaker()

	stats := cb.Stats()
	if stats.State != "closed" {
		t.Errorf("State = %q, want closed", stats.State)
	}
	if !stats.RetryAt.IsZero() {
		t.Error("RetryAt should be zero for a closed circuit")
	}

	cb.RecordFailure()
	stats = cb.Stats()
	if stats.ConsecutiveFails != 1 {
		t.Errorf("ConsecutiveFails = %d, want 1", stats.ConsecutiveFails)
	}
	if stats.LastFailure.IsZero() {
		t.Error("LastFailure should be set")
	}
}

func TestCircuitState_String(t *testing.T) {
	tests := []struct {
		state CircuitState
		want  string
	}{
		{CircuitClosed, "closed"},
		{CircuitOpen, "open"},
		{CircuitHalfOpen, "half-open"},
		{CircuitState(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("CircuitState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestCircuitBreaker_Allow_UnknownState(t *testing.T) {
	cb := NewCircuitBreaker()

	cb.mu.Lock()
	cb.state = CircuitState(99)
	cb.mu.Unlock()

	if cb.Allow() {
		t.Error("unknown state should return false")
	}
}

func TestCircuitOpenError_Error(t *testing.T) {
	err := &CircuitOpenError{
		State:    "open",
		RetryAt:  time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC),
		Failures: 5,
	}

	msg := err.Error()
	if !strings.Contains(msg, "circuit breaker is open after 5 consecutive failures") {
		t.Errorf("unexpected message %q", msg)
	}
	if !strings.Contains(msg, "2025-06-01T12:00:30Z") {
		t.Errorf("message should carry the retry time, got %q", msg)
	}

	wrapped := fmt.Errorf("page at offset 0: %w", err)
	if !IsCircuitOpen(wrapped) {
		t.Error("IsCircuitOpen should see through wrapping")
	}
}

func TestCircuitBreaker_ConcurrencySafety(t *testing.T) {
	cb := NewCircuitBreaker(WithFailureThreshold(10), WithResetTimeout(100*time.Millisecond), WithHalfOpenMax(5))

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(3)
		go func() {
			defer wg.Done()
			cb.Allow()
		}()
		go func() {
			defer wg.Done()
			cb.RecordSuccess()
		}()
		go func() {
			defer wg.Done()
			cb.RecordFailure()
		}()
	}
	wg.Wait()

	state := cb.State()
	if state != CircuitClosed && state != CircuitOpen && state != CircuitHalfOpen {
		t.Errorf("unexpected state: %v", state)
	}
}

// =============================================================================
// Throttle Tests
// =============================================================================

func TestThrottle_Unlimited(t *testing.T) {
	for _, perHour := range []int{0, -1} {
		th := NewThrottle(perHour)
		if !th.Unlimited() {
			t.Errorf("NewThrottle(%d) should be unlimited", perHour)
		}
		for range 100 {
			waited, err := th.Wait(context.Background())
			if err != nil {
				t.Fatalf("Wait failed: %v", err)
			}
			if waited {
				t.Fatal("unlimited throttle should never wait")
			}
		}
	}
}

func TestThrottle_BurstThenWait(t *testing.T) {
	th := NewThrottle(3600) // one token per second, burst of 10
	if th.Unlimited() {
		t.Fatal("throttle should be limited")
	}

	for i := range DefaultThrottleBurst {
		waited, err := th.Wait(context.Background())
		if err != nil {
			t.Fatalf("Wait %d failed: %v", i, err)
		}
		if waited {
			t.Fatalf("request %d within burst should not wait", i)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	waited, err := th.Wait(ctx)
	if !waited {
		t.Error("request past the burst should report waiting")
	}
	if err == nil {
		t.Fatal("expected error when the deadline is shorter than the refill interval")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error %v should wrap context.DeadlineExceeded", err)
	}
}

func TestThrottle_SmallQuotaBurst(t *testing.T) {
	th := NewThrottle(2)
	if got := th.limiter.Burst(); got != 2 {
		t.Errorf("burst = %d, want 2 for a quota smaller than the default burst", got)
	}
}
