package gc

import (
	"math"
	"time"

	"github.com/echocog/spiralmem/internal/bus"
	"github.com/echocog/spiralmem/internal/model"
)

// NodeView is the read-only projection of a node the scheduler needs to
// decide collect/skip/force-collect, without taking a dependency on the
// store's full internal representation.
type NodeView struct {
	ID               string
	Depth            model.MemoryDepth
	AccessCount      int64
	MemoryStrength   float64
	AssociationCount int
	LastAccessedAt   time.Time
	SkipCount        int
}

// Hooks is the narrow surface the scheduler needs from the store. The
// store is the only implementer; this exists so the scheduler package
// has no import-cycle dependency on internal/store.
type Hooks interface {
	NodeView(id string) (NodeView, bool)
	IncrSkipCount(id string) int
	EvictNode(id string, forced bool) error
}

// Config holds the tunable thresholds of spec.md §4.E.
type Config struct {
	BudgetScale     int // nodes per ms
	ForcedSkipLimit int
	AgeThreshold    time.Duration
	AccessThreshold int64
	StrengthThreshold float64
	AssocThreshold    int
}

// DefaultConfig matches spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		BudgetScale:       10,
		ForcedSkipLimit:   3,
		AgeThreshold:      24 * time.Hour,
		AccessThreshold:   2,
		StrengthThreshold: 0.5,
		AssocThreshold:    3,
	}
}

// Report is the per-tick summary emitted on the gc_tick topic.
type Report struct {
	Collected  int
	Forced     int
	Remaining  int
	BudgetMS   int64
	ElapsedMS  int64
}

// Scheduler runs the GC procedure once per system_tick event (spec.md
// §4.E). It never runs on its own timer; cmd/spiralmemd wires its Tick to
// the bus's system_tick subscription.
type Scheduler struct {
	cfg   Config
	hooks Hooks
	heap  *Heap
	bus   *bus.Bus
	now   func() time.Time
}

// New constructs a Scheduler over heap, driven by hooks, emitting on b.
func New(cfg Config, hooks Hooks, heap *Heap, b *bus.Bus, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{cfg: cfg, hooks: hooks, heap: heap, bus: b, now: now}
}

// budget computes B = min(250, ceil(queue_size/scale)) milliseconds.
func (s *Scheduler) budget() int64 {
	scale := s.cfg.BudgetScale
	if scale <= 0 {
		scale = 10
	}
	n := s.heap.Len()
	ms := int64(math.Ceil(float64(n) / float64(scale)))
	if ms > 250 {
		ms = 250
	}
	return ms
}

// Tick runs one GC pass under the caller's write lock and returns the
// report that is also emitted on gc_tick.
func (s *Scheduler) Tick() Report {
	budgetMS := s.budget()
	deadline := s.now().Add(time.Duration(budgetMS) * time.Millisecond)

	var collected, forced int
	start := s.now()

	// seen bounds each node to at most one collect/skip decision per tick,
	// so ForcedSkipLimit skips are spread across system_tick events rather
	// than collapsing into a single call.
	seen := make(map[string]bool)
	var requeue []model.GCHeapEntry

	for {
		if budgetMS > 0 && !s.now().Before(deadline) {
			break
		}
		id, ok := s.heap.PeekID()
		if !ok {
			break
		}
		if seen[id] {
			break
		}

		view, exists := s.hooks.NodeView(id)
		if !exists {
			// Stale heap entry (node already gone); drop it and continue.
			s.heap.Remove(id)
			continue
		}

		if s.shouldCollect(view) {
			s.heap.Remove(id)
			if err := s.hooks.EvictNode(id, false); err == nil {
				collected++
			}
			continue
		}

		seen[id] = true
		// Force only once ForcedSkipLimit skips have already completed on
		// prior ticks: the limit-th skip itself must still land as a skip,
		// so this checks the count accumulated so far, not the count after
		// this tick's increment.
		if view.SkipCount >= s.cfg.ForcedSkipLimit {
			s.heap.Remove(id)
			if err := s.hooks.EvictNode(id, true); err == nil {
				forced++
			}
			continue
		}
		s.hooks.IncrSkipCount(id)

		// Hold the skipped node out of the heap until the sweep ends so the
		// next pop examines a different entry instead of this one; it is
		// re-queued below and revisited on the next system_tick.
		s.heap.Remove(id)
		requeue = append(requeue, model.GCHeapEntry{NodeID: id, Score: view.LastAccessedAt.UnixNano()})
	}
	for _, e := range requeue {
		s.heap.Push(e.NodeID, e.Score)
	}

	elapsed := s.now().Sub(start)
	report := Report{
		Collected: collected,
		Forced:    forced,
		Remaining: s.heap.Len(),
		BudgetMS:  budgetMS,
		ElapsedMS: elapsed.Milliseconds(),
	}

	if s.bus != nil {
		s.bus.Emit(bus.TopicGCTick, "", map[string]any{
			"collected":  report.Collected,
			"forced":     report.Forced,
			"remaining":  report.Remaining,
			"budget_ms":  report.BudgetMS,
			"elapsed_ms": report.ElapsedMS,
		})
	}

	return report
}

// shouldCollect implements spec.md §4.E's natural-collection rule: all
// five conditions must hold.
func (s *Scheduler) shouldCollect(v NodeView) bool {
	age := s.now().Sub(v.LastAccessedAt)
	return age > s.cfg.AgeThreshold &&
		v.AccessCount < s.cfg.AccessThreshold &&
		v.MemoryStrength < s.cfg.StrengthThreshold &&
		!v.Depth.GCExempt() &&
		v.AssociationCount <= s.cfg.AssocThreshold
}
