// Package storage implements the pluggable key-value backend contract of
// spec.md §4.A: get/set/del, prefix scan, atomic increment, latency
// instrumentation, and a circuit breaker wrapping every operation.
package storage

import "context"

// Key prefixes, fixed per spec.md §6.
const (
	PrefixMem         = "mem:"
	PrefixSpiral      = "spiral:"
	PrefixSigil       = "sigil:"
	PrefixSpiralCount = "spiral_count:"
	KeySchemaVersion  = "schema:version"
)

// Adapter is the storage backend contract every implementation (memory,
// local_kv, remote_cache, remote_cluster) must satisfy.
type Adapter interface {
	// Init establishes the connection and performs a health check.
	Init(ctx context.Context) error

	// Get returns the value stored at key, or ok=false if absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value at key.
	Set(ctx context.Context, key string, value []byte) error

	// Del removes key, if present.
	Del(ctx context.Context, key string) error

	// Keys returns every key with the given prefix. Used only at startup
	// reload per spec.md §4.A.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// AtomicIncr adds delta to the integer stored at key and returns the
	// new value. Backends without native atomicity synthesize it via a
	// lock or compare-and-swap loop.
	AtomicIncr(ctx context.Context, key string, delta int64) (int64, error)

	// Close releases backend resources.
	Close() error
}

// LatencyRecorder is implemented by components (internal/metrics) that
// want to observe the record_latency(operation, ms) hook of spec.md §4.A.
type LatencyRecorder interface {
	RecordLatency(operation string, ms float64)
}
