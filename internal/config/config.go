// Package config loads the spiral memory store's runtime configuration,
// following the env-driven Default*Config idiom used throughout the
// teacher's persistence layer (see core/persistence/dgraph_client.go).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Backend selects which storage.Adapter implementation the store uses.
type Backend string

const (
	BackendMemory        Backend = "memory"
	BackendLocalKV       Backend = "local_kv"
	BackendRemoteCache   Backend = "remote_cache"
	BackendRemoteCluster Backend = "remote_cluster"
)

// Mode gates fail-closed behavior (e.g. the event-signing key check).
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// Config holds every recognized option from spec.md §6, each with a
// default matching the spec.
type Config struct {
	Mode Mode

	StorageBackend    Backend
	StoragePath       string
	RemoteCacheURL    string
	RemoteClusterURL  string
	RemoteCacheTLS    bool

	EventSigningKey string

	SigilHashSlice int

	GCBudgetScale     int
	GCForcedSkipLimit int
	GCAgeThreshold    time.Duration

	MaxSpirals         int
	MaxNodesPerSpiral  int

	HDWeightDistance float64
	HDWeightLoad     float64
	HDWeightAge      float64

	MetricsPort      int
	MetricsJWTSecret string

	SigilCacheCapacity int
	EventHistorySize   int
}

// Default returns the configuration spec.md documents as the default,
// before environment overrides are applied.
func Default() *Config {
	return &Config{
		Mode: ModeDevelopment,

		StorageBackend: BackendMemory,
		StoragePath:    "./data/spiralmem",

		SigilHashSlice: 10,

		GCBudgetScale:     10,
		GCForcedSkipLimit: 3,
		GCAgeThreshold:    24 * time.Hour,

		MaxSpirals:        64,
		MaxNodesPerSpiral: 10000,

		HDWeightDistance: 0.5,
		HDWeightLoad:     0.3,
		HDWeightAge:      0.2,

		MetricsPort: 9090,

		SigilCacheCapacity: 5000,
		EventHistorySize:   100,
	}
}

// FromEnv applies environment-variable overrides on top of Default().
func FromEnv() (*Config, error) {
	c := Default()

	if v := os.Getenv("SPIRALMEM_MODE"); v != "" {
		c.Mode = Mode(v)
	}
	if v := os.Getenv("SPIRALMEM_STORAGE_BACKEND"); v != "" {
		c.StorageBackend = Backend(v)
	}
	if v := os.Getenv("SPIRALMEM_STORAGE_PATH"); v != "" {
		c.StoragePath = v
	}
	if v := os.Getenv("SPIRALMEM_REMOTE_CACHE_URL"); v != "" {
		c.RemoteCacheURL = v
		if c.StorageBackend == BackendMemory {
			c.StorageBackend = BackendRemoteCache
		}
	}
	if v := os.Getenv("SPIRALMEM_REMOTE_CLUSTER_URL"); v != "" {
		c.RemoteClusterURL = v
		if c.StorageBackend == BackendMemory {
			c.StorageBackend = BackendRemoteCluster
		}
	}
	if v := os.Getenv("SPIRALMEM_REMOTE_CACHE_TLS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("parse SPIRALMEM_REMOTE_CACHE_TLS: %w", err)
		}
		c.RemoteCacheTLS = b
	}

	c.EventSigningKey = os.Getenv("SPIRALMEM_EVENT_SIGNING_KEY")

	if v := os.Getenv("SPIRALMEM_SIGIL_HASH_SLICE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse SPIRALMEM_SIGIL_HASH_SLICE: %w", err)
		}
		c.SigilHashSlice = n
	}
	if v := os.Getenv("SPIRALMEM_GC_BUDGET_SCALE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse SPIRALMEM_GC_BUDGET_SCALE: %w", err)
		}
		c.GCBudgetScale = n
	}
	if v := os.Getenv("SPIRALMEM_GC_FORCED_SKIP_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse SPIRALMEM_GC_FORCED_SKIP_LIMIT: %w", err)
		}
		c.GCForcedSkipLimit = n
	}
	if v := os.Getenv("SPIRALMEM_GC_AGE_THRESHOLD_MS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse SPIRALMEM_GC_AGE_THRESHOLD_MS: %w", err)
		}
		c.GCAgeThreshold = time.Duration(n) * time.Millisecond
	}
	if v := os.Getenv("SPIRALMEM_MAX_SPIRALS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse SPIRALMEM_MAX_SPIRALS: %w", err)
		}
		c.MaxSpirals = n
	}
	if v := os.Getenv("SPIRALMEM_MAX_NODES_PER_SPIRAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse SPIRALMEM_MAX_NODES_PER_SPIRAL: %w", err)
		}
		c.MaxNodesPerSpiral = n
	}
	if v := os.Getenv("SPIRALMEM_METRICS_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse SPIRALMEM_METRICS_PORT: %w", err)
		}
		c.MetricsPort = n
	}
	c.MetricsJWTSecret = os.Getenv("SPIRALMEM_METRICS_JWT_SECRET")

	return c, nil
}

// Validate enforces the startup-fatal rules of spec.md §7: a production
// deployment without an event-signing key must refuse to start.
func (c *Config) Validate() error {
	if c.Mode == ModeProduction && c.EventSigningKey == "" {
		return fmt.Errorf("event_signing_key is required in production mode")
	}
	return nil
}
