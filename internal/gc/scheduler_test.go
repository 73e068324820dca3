package gc

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echocog/spiralmem/internal/bus"
	"github.com/echocog/spiralmem/internal/model"
)

type fakeHooks struct {
	views     map[string]NodeView
	evicted   []string
	forced    []string
	skipCalls map[string]int
}

func newFakeHooks() *fakeHooks {
	return &fakeHooks{views: map[string]NodeView{}, skipCalls: map[string]int{}}
}

func (f *fakeHooks) NodeView(id string) (NodeView, bool) {
	v, ok := f.views[id]
	return v, ok
}

func (f *fakeHooks) IncrSkipCount(id string) int {
	f.skipCalls[id]++
	v := f.views[id]
	v.SkipCount = f.skipCalls[id]
	f.views[id] = v
	return f.skipCalls[id]
}

func (f *fakeHooks) EvictNode(id string, forced bool) error {
	if forced {
		f.forced = append(f.forced, id)
	} else {
		f.evicted = append(f.evicted, id)
	}
	delete(f.views, id)
	return nil
}

func TestSchedulerTick(t *testing.T) {
	t.Run("CollectsStaleUnderusedNode", func(t *testing.T) {
		hooks := newFakeHooks()
		heap := NewHeap()
		old := time.Now().Add(-48 * time.Hour)
		hooks.views["n1"] = NodeView{
			ID: "n1", Depth: model.DepthSurface, AccessCount: 0,
			MemoryStrength: 0.1, AssociationCount: 0, LastAccessedAt: old,
		}
		heap.Push("n1", old.UnixNano())

		cfg := DefaultConfig()
		sched := New(cfg, hooks, heap, nil, nil)

		report := sched.Tick()

		assert.Equal(t, 1, report.Collected)
		assert.Equal(t, 0, report.Forced)
		assert.Equal(t, 0, report.Remaining)
		assert.Contains(t, hooks.evicted, "n1")
	})

	t.Run("SkipsExemptDepth", func(t *testing.T) {
		hooks := newFakeHooks()
		heap := NewHeap()
		old := time.Now().Add(-48 * time.Hour)
		hooks.views["n1"] = NodeView{
			ID: "n1", Depth: model.DepthCore, AccessCount: 0,
			MemoryStrength: 0.1, AssociationCount: 0, LastAccessedAt: old,
		}
		heap.Push("n1", old.UnixNano())

		cfg := DefaultConfig()
		cfg.ForcedSkipLimit = 100 // avoid forced path interfering with this assertion
		sched := New(cfg, hooks, heap, nil, nil)

		report := sched.Tick()

		assert.Equal(t, 0, report.Collected)
		assert.Equal(t, 0, report.Forced)
		assert.Equal(t, 1, report.Remaining)
	})

	t.Run("ForceCollectsAfterSkipLimit", func(t *testing.T) {
		hooks := newFakeHooks()
		heap := NewHeap()
		recent := time.Now()
		hooks.views["n1"] = NodeView{
			ID: "n1", Depth: model.DepthCore, AccessCount: 10,
			MemoryStrength: 0.9, AssociationCount: 0, LastAccessedAt: recent,
		}
		heap.Push("n1", recent.UnixNano())

		cfg := DefaultConfig()
		cfg.ForcedSkipLimit = 2
		sched := New(cfg, hooks, heap, nil, nil)

		first := sched.Tick()
		assert.Equal(t, 0, first.Forced)
		assert.Equal(t, 1, first.Remaining)

		second := sched.Tick()
		assert.Equal(t, 0, second.Forced)
		assert.Equal(t, 1, second.Remaining)

		third := sched.Tick()
		require.Equal(t, 1, third.Forced)
		assert.Contains(t, hooks.forced, "n1")
		assert.Equal(t, 0, third.Remaining)
	})

	t.Run("StaleHeapEntryIsDropped", func(t *testing.T) {
		hooks := newFakeHooks()
		heap := NewHeap()
		heap.Push("ghost", time.Now().UnixNano())

		sched := New(DefaultConfig(), hooks, heap, nil, nil)
		report := sched.Tick()

		assert.Equal(t, 0, report.Collected)
		assert.Equal(t, 0, report.Remaining)
	})

	t.Run("EmitsGCTickEvent", func(t *testing.T) {
		hooks := newFakeHooks()
		heap := NewHeap()
		b := bus.New("", 10)
		var captured bus.Event
		b.Subscribe(bus.TopicGCTick, func(e bus.Event) { captured = e })

		sched := New(DefaultConfig(), hooks, heap, b, nil)
		sched.Tick()

		assert.Equal(t, bus.TopicGCTick, captured.Topic)
		assert.Equal(t, 0, captured.Payload["collected"])
	})
}

func TestBudget(t *testing.T) {
	t.Run("ScalesWithQueueSize", func(t *testing.T) {
		heap := NewHeap()
		for i := 0; i < 55; i++ {
			heap.Push(fmt.Sprintf("node-%d", i), int64(i))
		}
		sched := New(Config{BudgetScale: 10}, newFakeHooks(), heap, nil, nil)
		assert.Equal(t, int64(6), sched.budget())
	})

	t.Run("CapsAt250", func(t *testing.T) {
		heap := NewHeap()
		for i := 0; i < 10000; i++ {
			heap.Push(fmt.Sprintf("node-%d", i), int64(i))
		}
		sched := New(Config{BudgetScale: 1}, newFakeHooks(), heap, nil, nil)
		assert.Equal(t, int64(250), sched.budget())
	})
}
