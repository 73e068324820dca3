// Package rebuild implements the Stats Rebuilder of spec.md §4.F: a
// single-pass reconciliation of per-spiral counters against the
// authoritative node set, callable at startup and on demand.
package rebuild

import (
	"context"
	"math"
	"runtime"
	"time"

	"github.com/echocog/spiralmem/internal/bus"
	"github.com/echocog/spiralmem/internal/model"
)

const tolerance = 1e-3
const batchSize = 1000
const yieldEveryBatches = 10

// Hooks is the narrow surface the rebuilder needs from the store.
type Hooks interface {
	Snapshot() (nodes map[string]*model.MemoryNode, spirals map[string]*model.Spiral)
	ApplySpiralCorrection(ctx context.Context, id string, nodeCount int, averageDepth, currentRadius float64, totalTurns int) error
}

// Correction describes one spiral whose stored counters diverged from
// the authoritative node set.
type Correction struct {
	SpiralID string         `json:"spiral_id"`
	Before   CounterSet     `json:"before"`
	After    CounterSet     `json:"after"`
	Deltas   CounterDeltas  `json:"deltas"`
}

// CounterSet is a spiral's derived-counter snapshot.
type CounterSet struct {
	NodeCount     int     `json:"node_count"`
	AverageDepth  float64 `json:"average_depth"`
	CurrentRadius float64 `json:"current_radius"`
	TotalTurns    int     `json:"total_turns"`
}

// CounterDeltas is After minus Before, field by field.
type CounterDeltas struct {
	NodeCount     int     `json:"node_count"`
	AverageDepth  float64 `json:"average_depth"`
	CurrentRadius float64 `json:"current_radius"`
	TotalTurns    int     `json:"total_turns"`
}

// Report is the reconciliation summary emitted on rebuild_stats.
type Report struct {
	Corrected   []Correction
	TotalNodes  int
	DurationMS  int64
	CacheHits   int
	CacheMisses int
}

// Rebuilder runs the reconciliation pass, driven by hooks, emitting on b.
type Rebuilder struct {
	hooks Hooks
	bus   *bus.Bus
	now   func() time.Time
}

// New constructs a Rebuilder.
func New(hooks Hooks, b *bus.Bus, now func() time.Time) *Rebuilder {
	if now == nil {
		now = time.Now
	}
	return &Rebuilder{hooks: hooks, bus: b, now: now}
}

// Run performs one single-pass reconciliation (spec.md §4.F).
func (r *Rebuilder) Run(ctx context.Context) Report {
	start := r.now()

	nodes, spirals := r.hooks.Snapshot()

	type accum struct {
		count      int
		depthSum   float64
		maxRadius  float64
		maxTurn    int
	}
	bySpiral := make(map[string]*accum)

	processed := 0
	batches := 0
	for _, n := range nodes {
		a, ok := bySpiral[n.SpiralID]
		if !ok {
			a = &accum{}
			bySpiral[n.SpiralID] = a
		}
		a.count++
		a.depthSum += n.Depth.Weight()
		if n.Position.Radius > a.maxRadius {
			a.maxRadius = n.Position.Radius
		}
		if n.Position.Turn > a.maxTurn {
			a.maxTurn = n.Position.Turn
		}

		processed++
		if processed%batchSize == 0 {
			batches++
			if batches%yieldEveryBatches == 0 {
				// Yield control to the event loop (spec.md §4.F step 4).
				select {
				case <-ctx.Done():
					return r.finish(start, nil, len(nodes))
				default:
				}
				runtime.Gosched()
			}
		}
	}

	var corrections []Correction
	for id, sp := range spirals {
		a := bySpiral[id]
		nodeCount, avgDepth, radius, turns := 0, 0.0, 0.0, 0
		if a != nil {
			nodeCount = a.count
			avgDepth = a.depthSum / float64(a.count)
			radius = a.maxRadius
			turns = a.maxTurn
		}

		before := CounterSet{sp.NodeCount, sp.AverageDepth, sp.CurrentRadius, sp.TotalTurns}
		after := CounterSet{nodeCount, avgDepth, radius, turns}

		if !withinTolerance(before, after) {
			if err := r.hooks.ApplySpiralCorrection(ctx, id, nodeCount, avgDepth, radius, turns); err == nil {
				corrections = append(corrections, Correction{
					SpiralID: id,
					Before:   before,
					After:    after,
					Deltas: CounterDeltas{
						NodeCount:     after.NodeCount - before.NodeCount,
						AverageDepth:  after.AverageDepth - before.AverageDepth,
						CurrentRadius: after.CurrentRadius - before.CurrentRadius,
						TotalTurns:    after.TotalTurns - before.TotalTurns,
					},
				})
			}
		}
	}

	return r.finish(start, corrections, len(nodes))
}

func (r *Rebuilder) finish(start time.Time, corrections []Correction, totalNodes int) Report {
	report := Report{
		Corrected:  corrections,
		TotalNodes: totalNodes,
		DurationMS: r.now().Sub(start).Milliseconds(),
	}
	if r.bus != nil {
		r.bus.Emit(bus.TopicRebuildStats, "", map[string]any{
			"corrected_count": len(corrections),
			"total_nodes":     report.TotalNodes,
			"duration_ms":     report.DurationMS,
		})
	}
	return report
}

func withinTolerance(a, b CounterSet) bool {
	return a.NodeCount == b.NodeCount &&
		a.TotalTurns == b.TotalTurns &&
		math.Abs(a.AverageDepth-b.AverageDepth) <= tolerance &&
		math.Abs(a.CurrentRadius-b.CurrentRadius) <= tolerance
}
