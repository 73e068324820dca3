package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerTransitions(t *testing.T) {
	t.Run("StartsClosedAndAllows", func(t *testing.T) {
		b := NewCircuitBreaker("test", DefaultBreakerConfig(), nil)
		assert.Equal(t, StateClosed, b.State())
		assert.True(t, b.Allow())
	})

	t.Run("OpensAfterThresholdFailures", func(t *testing.T) {
		var transitions []BreakerState
		cfg := BreakerConfig{FailureThreshold: 3, OpenTimeout: time.Hour, HalfOpenSuccesses: 1}
		b := NewCircuitBreaker("test", cfg, func(backend string, from, to BreakerState) {
			transitions = append(transitions, to)
		})

		for i := 0; i < 2; i++ {
			b.RecordFailure()
			assert.Equal(t, StateClosed, b.State())
		}
		b.RecordFailure()

		assert.Equal(t, StateOpen, b.State())
		require.Len(t, transitions, 1)
		assert.Equal(t, StateOpen, transitions[0])
	})

	t.Run("RejectsCallsWhileOpen", func(t *testing.T) {
		cfg := BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Hour, HalfOpenSuccesses: 1}
		b := NewCircuitBreaker("test", cfg, nil)
		b.RecordFailure()
		assert.False(t, b.Allow())
	})

	t.Run("HalfOpensAfterTimeoutThenCloses", func(t *testing.T) {
		cfg := BreakerConfig{FailureThreshold: 1, OpenTimeout: 10 * time.Millisecond, HalfOpenSuccesses: 1}
		b := NewCircuitBreaker("test", cfg, nil)
		b.RecordFailure()
		require.Equal(t, StateOpen, b.State())

		time.Sleep(20 * time.Millisecond)
		assert.True(t, b.Allow())
		assert.Equal(t, StateHalfOpen, b.State())

		b.RecordSuccess()
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("FailureDuringHalfOpenReopens", func(t *testing.T) {
		cfg := BreakerConfig{FailureThreshold: 1, OpenTimeout: 10 * time.Millisecond, HalfOpenSuccesses: 1}
		b := NewCircuitBreaker("test", cfg, nil)
		b.RecordFailure()
		time.Sleep(20 * time.Millisecond)
		b.Allow()
		require.Equal(t, StateHalfOpen, b.State())

		b.RecordFailure()
		assert.Equal(t, StateOpen, b.State())
	})

	t.Run("SuccessInClosedStateResetsFailureCount", func(t *testing.T) {
		cfg := BreakerConfig{FailureThreshold: 3, OpenTimeout: time.Hour, HalfOpenSuccesses: 1}
		b := NewCircuitBreaker("test", cfg, nil)
		b.RecordFailure()
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordFailure()
		b.RecordFailure()
		assert.Equal(t, StateClosed, b.State(), "success should have reset the consecutive failure count")
	})
}

func TestBreakerStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
