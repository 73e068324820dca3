package storage

import (
	"sync"
	"time"
)

// BreakerState is one of the three states of spec.md §4.A / GLOSSARY.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes the breaker's transition thresholds.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures (in closed
	// state) that trips the breaker open.
	FailureThreshold int
	// OpenTimeout is how long the breaker stays open before moving to
	// half-open, where calls are let through as probes.
	OpenTimeout time.Duration
	// HalfOpenSuccesses is the number of consecutive half-open successes
	// required to close the breaker again.
	HalfOpenSuccesses int
}

// DefaultBreakerConfig matches the "threshold of 10" used by the backend
// outage scenario in spec.md §8.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 10, OpenTimeout: 5 * time.Second, HalfOpenSuccesses: 1}
}

// OnTransition is invoked whenever the breaker changes state, so callers
// (internal/metrics) can increment circuit_breaker_open_total{backend}.
type OnTransition func(backend string, from, to BreakerState)

// CircuitBreaker guards a single named backend's operations, failing fast
// with BackendUnavailable while open.
type CircuitBreaker struct {
	mu sync.Mutex

	backend string
	cfg     BreakerConfig
	onTrans OnTransition

	state            BreakerState
	consecutiveFails int
	halfOpenOK       int
	openedAt         time.Time
}

// NewCircuitBreaker constructs a breaker in the closed state.
func NewCircuitBreaker(backend string, cfg BreakerConfig, onTrans OnTransition) *CircuitBreaker {
	return &CircuitBreaker{backend: backend, cfg: cfg, onTrans: onTrans, state: StateClosed}
}

// Allow reports whether a call may proceed, transitioning open->half-open
// once the open timeout has elapsed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(b.openedAt) >= b.cfg.OpenTimeout {
			b.transition(StateHalfOpen)
			return true
		}
		return false
	}
	return false
}

// RecordSuccess reports a successful call, closing the breaker if it was
// half-open.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.consecutiveFails = 0
	case StateHalfOpen:
		b.halfOpenOK++
		if b.halfOpenOK >= b.cfg.HalfOpenSuccesses {
			b.consecutiveFails = 0
			b.halfOpenOK = 0
			b.transition(StateClosed)
		}
	}
}

// RecordFailure reports a failed call, tripping the breaker open once the
// failure threshold is reached (or immediately, from half-open).
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.consecutiveFails++
		if b.consecutiveFails >= b.cfg.FailureThreshold {
			b.openedAt = time.Now()
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.halfOpenOK = 0
		b.openedAt = time.Now()
		b.transition(StateOpen)
	}
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transition must be called with b.mu held.
func (b *CircuitBreaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	if from != to && b.onTrans != nil {
		b.onTrans(b.backend, from, to)
	}
}
