package storage

import (
	"context"
	"errors"
	"time"

	"github.com/echocog/spiralmem/internal/storeerr"
)

// Instrumented wraps an Adapter with a circuit breaker, an operation
// deadline, and latency recording — the cross-cutting contract every
// concrete backend in this package is required to carry (spec.md §4.A,
// §5 "all adapter calls carry an operation-level deadline").
type Instrumented struct {
	inner    Adapter
	backend  string
	breaker  *CircuitBreaker
	recorder LatencyRecorder
	deadline time.Duration
}

// NewInstrumented wraps inner with breaker and an op deadline. recorder
// may be nil.
func NewInstrumented(inner Adapter, backend string, breaker *CircuitBreaker, recorder LatencyRecorder, deadline time.Duration) *Instrumented {
	if deadline <= 0 {
		deadline = 2 * time.Second
	}
	return &Instrumented{inner: inner, backend: backend, breaker: breaker, recorder: recorder, deadline: deadline}
}

func (a *Instrumented) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if !a.breaker.Allow() {
		return storeerr.New(storeerr.BackendUnavailable, "circuit open for "+a.backend)
	}

	cctx, cancel := context.WithTimeout(ctx, a.deadline)
	defer cancel()

	start := time.Now()
	err := fn(cctx)
	elapsed := time.Since(start)

	if a.recorder != nil {
		a.recorder.RecordLatency(op, float64(elapsed.Microseconds())/1000.0)
	}

	if err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			a.breaker.RecordFailure()
			return storeerr.Wrap(storeerr.BackendTimeout, op+" timed out", err)
		}
		a.breaker.RecordFailure()
		return storeerr.Wrap(storeerr.BackendUnavailable, op+" failed", err)
	}
	a.breaker.RecordSuccess()
	return nil
}

func (a *Instrumented) Init(ctx context.Context) error {
	return a.run(ctx, "init", a.inner.Init)
}

func (a *Instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var ok bool
	err := a.run(ctx, "get", func(cctx context.Context) error {
		var innerErr error
		value, ok, innerErr = a.inner.Get(cctx, key)
		return innerErr
	})
	return value, ok, err
}

func (a *Instrumented) Set(ctx context.Context, key string, value []byte) error {
	return a.run(ctx, "set", func(cctx context.Context) error {
		return a.inner.Set(cctx, key, value)
	})
}

func (a *Instrumented) Del(ctx context.Context, key string) error {
	return a.run(ctx, "del", func(cctx context.Context) error {
		return a.inner.Del(cctx, key)
	})
}

func (a *Instrumented) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := a.run(ctx, "keys", func(cctx context.Context) error {
		var innerErr error
		keys, innerErr = a.inner.Keys(cctx, prefix)
		return innerErr
	})
	return keys, err
}

func (a *Instrumented) AtomicIncr(ctx context.Context, key string, delta int64) (int64, error) {
	var v int64
	err := a.run(ctx, "atomic_incr", func(cctx context.Context) error {
		var innerErr error
		v, innerErr = a.inner.AtomicIncr(cctx, key, delta)
		return innerErr
	})
	return v, err
}

func (a *Instrumented) Close() error {
	return a.inner.Close()
}

// BreakerState exposes the wrapped breaker's state for metrics/health
// endpoints.
func (a *Instrumented) BreakerState() BreakerState {
	return a.breaker.State()
}

var _ Adapter = (*Instrumented)(nil)
