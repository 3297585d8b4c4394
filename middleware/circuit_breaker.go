package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shrek82/jbulk/core"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// CircuitBreakerMiddleware stops sending batches to a sink after Threshold
// consecutive failed batches, and lets a single probe batch through once
// ResetTimeout has passed. Canceled batches are not counted as failures.
type CircuitBreakerMiddleware struct {
	Threshold    int           // Number of consecutive failures before opening
	ResetTimeout time.Duration // Time to wait before half-open

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool
	now         func() time.Time
}

func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreakerMiddleware {
	return &CircuitBreakerMiddleware{
		Threshold:    threshold,
		ResetTimeout: resetTimeout,
		state:        StateClosed,
		now:          time.Now,
	}
}

func (m *CircuitBreakerMiddleware) Name() string {
	return "CircuitBreaker"
}

func (m *CircuitBreakerMiddleware) Init(e *core.Engine) error {
	return nil
}

func (m *CircuitBreakerMiddleware) Shutdown() error {
	return nil
}

// State returns the current breaker state.
func (m *CircuitBreakerMiddleware) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *CircuitBreakerMiddleware) Process(ctx context.Context, batch *core.Batch, next core.BatchFunc) (*core.Result, error) {
	if err := m.allow(); err != nil {
		return &core.Result{Error: err}, err
	}

	res, err := next(ctx, batch)

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case err == nil:
		m.recordSuccess()
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		m.probing = false
	default:
		m.recordFailure()
	}
	return res, err
}

func (m *CircuitBreakerMiddleware) allow() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateOpen:
		if m.now().Sub(m.lastFailure) <= m.ResetTimeout {
			return ErrCircuitOpen
		}
		m.state = StateHalfOpen
		m.probing = true
	case StateHalfOpen:
		// one probe at a time
		if m.probing {
			return ErrCircuitOpen
		}
		m.probing = true
	}
	return nil
}

func (m *CircuitBreakerMiddleware) recordFailure() {
	m.failures++
	m.lastFailure = m.now()

	switch m.state {
	case StateClosed:
		if m.failures >= m.Threshold {
			m.state = StateOpen
		}
	case StateHalfOpen:
		m.state = StateOpen
		m.probing = false
	}
}

func (m *CircuitBreakerMiddleware) recordSuccess() {
	m.state = StateClosed
	m.failures = 0
	m.probing = false
}
