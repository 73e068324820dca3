// Command spiralmemd runs the spiral memory store: the event bus, the
// memory store, the GC scheduler, the stats rebuilder, and the
// metrics/explorer HTTP surface, wired together the way
// core/webserver/main-style entrypoints in the teacher repo construct
// their ecosystem before starting the server loop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/echocog/spiralmem/internal/bus"
	"github.com/echocog/spiralmem/internal/config"
	"github.com/echocog/spiralmem/internal/gc"
	"github.com/echocog/spiralmem/internal/httpapi"
	"github.com/echocog/spiralmem/internal/logging"
	"github.com/echocog/spiralmem/internal/metrics"
	"github.com/echocog/spiralmem/internal/rebuild"
	"github.com/echocog/spiralmem/internal/storage"
	"github.com/echocog/spiralmem/internal/store"
)

const schemaVersion = "1"

// exit codes per spec.md §6.
const (
	exitOK                = 0
	exitConfigError       = 1
	exitBackendUnavailable = 2
	exitSchemaMismatch    = 3
)

func main() {
	root := &cobra.Command{
		Use:   "spiralmemd",
		Short: "Spiral memory store daemon",
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the store, GC scheduler and HTTP surface",
		RunE:  runServe,
	})
	root.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "Run a single stats-rebuild pass against the configured backend and exit",
		RunE:  runRebuildOnce,
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitConfigError)
	}
}

type system struct {
	cfg      *config.Config
	log      *zap.Logger
	adapter  storage.Adapter
	evbus    *bus.Bus
	st       *store.Store
	gcSched  *gc.Scheduler
	rebuilder *rebuild.Rebuilder
	mx       *metrics.Metrics
}

func buildSystem() (*system, int, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, exitConfigError, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, exitConfigError, err
	}

	log, err := logging.New(string(cfg.Mode))
	if err != nil {
		return nil, exitConfigError, err
	}

	mx := metrics.New()

	adapter, backendName, err := buildAdapter(cfg, mx)
	if err != nil {
		return nil, exitConfigError, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adapter.Init(ctx); err != nil {
		return nil, exitBackendUnavailable, err
	}

	if code, err := checkSchemaVersion(ctx, adapter); err != nil {
		return nil, code, err
	}

	evbus := bus.New(cfg.EventSigningKey, cfg.EventHistorySize)

	st := store.New(adapter, evbus, store.ConfigFrom(cfg), nil)
	if err := st.Init(ctx); err != nil {
		return nil, exitBackendUnavailable, err
	}
	st.Wire(evbus)

	gcCfg := gc.Config{
		BudgetScale: cfg.GCBudgetScale, ForcedSkipLimit: cfg.GCForcedSkipLimit,
		AgeThreshold: cfg.GCAgeThreshold, AccessThreshold: 2,
		StrengthThreshold: 0.5, AssocThreshold: 3,
	}
	gcSched := gc.New(gcCfg, st, st.Heap(), evbus, nil)

	rebuilder := rebuild.New(st, evbus, nil)

	evbus.Subscribe(bus.TopicSystemTick, func(e bus.Event) {
		st.FlushPendingAssociations(context.Background())
		gcSched.Tick()
	})

	wireMetrics(evbus, mx, st)

	log.Info("spiral memory store initialized", zap.String("backend", backendName))

	return &system{
		cfg: cfg, log: log, adapter: adapter, evbus: evbus,
		st: st, gcSched: gcSched, rebuilder: rebuilder, mx: mx,
	}, exitOK, nil
}

func buildAdapter(cfg *config.Config, mx *metrics.Metrics) (storage.Adapter, string, error) {
	backendName := string(cfg.StorageBackend)
	breaker := storage.NewCircuitBreaker(backendName, storage.DefaultBreakerConfig(), mx.OnBreakerTransition)
	recorder := mx.NewBackendRecorder(backendName)

	var inner storage.Adapter
	switch cfg.StorageBackend {
	case config.BackendMemory:
		inner = storage.NewMemoryBackend()
	case config.BackendLocalKV:
		inner = storage.NewLocalKV(cfg.StoragePath)
	case config.BackendRemoteCache:
		inner = storage.NewRedisCache(cfg.RemoteCacheURL, cfg.RemoteCacheTLS)
	case config.BackendRemoteCluster:
		inner = storage.NewRemoteCluster([]string{cfg.RemoteClusterURL}, cfg.RemoteCacheTLS)
	default:
		return nil, "", fmt.Errorf("unknown storage_backend %q", cfg.StorageBackend)
	}

	return storage.NewInstrumented(inner, backendName, breaker, recorder, 2*time.Second), backendName, nil
}

func checkSchemaVersion(ctx context.Context, adapter storage.Adapter) (int, error) {
	data, ok, err := adapter.Get(ctx, storage.KeySchemaVersion)
	if err != nil {
		return exitBackendUnavailable, err
	}
	if !ok {
		if err := adapter.Set(ctx, storage.KeySchemaVersion, []byte(schemaVersion)); err != nil {
			return exitBackendUnavailable, err
		}
		return exitOK, nil
	}
	if string(data) != schemaVersion {
		return exitSchemaMismatch, fmt.Errorf("schema version mismatch: backend has %q, binary expects %q", data, schemaVersion)
	}
	return exitOK, nil
}

// wireMetrics subscribes the metrics registry to the bus so the store,
// GC and rebuild series fed by bus events (store_allowed/denied_total,
// sigil_collision_total, gc_total, gc_forced_collect_total, gc_backlog,
// gc_budget_ms, gc_pause_ms, rebuild_corrected_total) stay current
// without the store or GC scheduler importing the metrics package
// directly. The other registered series are not updated here.
func wireMetrics(b *bus.Bus, mx *metrics.Metrics, st *store.Store) {
	b.Subscribe(bus.TopicMemoryStored, func(e bus.Event) {
		if ok, _ := e.Payload["ok"].(bool); ok || e.Payload["ok"] == nil {
			mx.StoreAllowedTotal.Inc()
		} else {
			mx.StoreDeniedTotal.Inc()
		}
	})
	b.Subscribe(bus.TopicSigilCollision, func(e bus.Event) {
		mx.SigilCollisionTotal.Inc()
	})
	b.Subscribe(bus.TopicGCTick, func(e bus.Event) {
		mx.GCTotal.Inc()
		if forced, ok := e.Payload["forced"].(int); ok && forced > 0 {
			mx.GCForcedCollectTotal.Add(float64(forced))
		}
		if remaining, ok := e.Payload["remaining"].(int); ok {
			mx.GCBacklog.Set(float64(remaining))
		}
		if budget, ok := e.Payload["budget_ms"].(int64); ok {
			mx.GCBudgetMS.Set(float64(budget))
		}
		if elapsed, ok := e.Payload["elapsed_ms"].(int64); ok {
			mx.GCPauseMS.Observe(float64(elapsed))
		}
	})
	b.Subscribe(bus.TopicRebuildStats, func(e bus.Event) {
		if n, ok := e.Payload["corrected_count"].(int); ok {
			mx.RebuildCorrectedTotal.Add(float64(n))
		}
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	sys, code, err := buildSystem()
	if err != nil {
		os.Exit(code)
	}
	defer sys.log.Sync()

	sys.rebuilder.Run(context.Background())

	httpCfg := httpapi.DefaultConfig()
	httpCfg.Port = sys.cfg.MetricsPort
	httpCfg.JWTSecret = sys.cfg.MetricsJWTSecret
	server := httpapi.New(httpCfg, sys.st, sys.st.Heap(), sys.mx, sys.log)

	go func() {
		if err := server.Start(); err != nil {
			sys.log.Error("http server stopped", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				sys.evbus.Emit(bus.TopicSystemTick, "", nil)
			case <-done:
				return
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	close(done)

	sys.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	_ = sys.st.Close()

	os.Exit(exitOK)
	return nil
}

func runRebuildOnce(cmd *cobra.Command, args []string) error {
	sys, code, err := buildSystem()
	if err != nil {
		os.Exit(code)
	}
	defer sys.log.Sync()

	report := sys.rebuilder.Run(context.Background())
	sys.log.Info("rebuild complete",
		zap.Int("corrected", len(report.Corrected)),
		zap.Int("total_nodes", report.TotalNodes),
		zap.Int64("duration_ms", report.DurationMS),
	)
	_ = sys.st.Close()
	return nil
}
