package spiral

import (
	"time"

	"github.com/echocog/spiralmem/internal/model"
)

// Candidate is the subset of Spiral state the selector scores against.
type Candidate struct {
	ID        string
	Type      model.SpiralType
	NodeCount int
	Capacity  int
	CreatedAt time.Time
}

// Selector chooses (or signals the need to create) a spiral for a new
// node, per spec.md §4.C.
type Selector struct {
	topology *Topology
	weights  Weights
	maxSpirals int
}

// MaxSpirals returns the configured spiral-count bound.
func (s *Selector) MaxSpirals() int { return s.maxSpirals }

// NewSelector builds a Selector with the given weights and max-spirals
// bound (spec.md §6 max_spirals).
func NewSelector(topology *Topology, weights Weights, maxSpirals int) *Selector {
	return &Selector{topology: topology, weights: weights, maxSpirals: maxSpirals}
}

// Decision is the outcome of Select: either an existing spiral id to use,
// or a signal that a new spiral of NewType should be created.
type Decision struct {
	UseExisting  string
	CreateNew    bool
	NewType      model.SpiralType
	AtCapacity   bool // true when CreateNew is requested but max_spirals is already reached
}

// Select scores every candidate spiral and returns the lowest-scoring one,
// or signals spiral creation when the best score exceeds 1.0.
func (s *Selector) Select(
	memType model.MemoryType,
	depth model.MemoryDepth,
	lastSpiralType model.SpiralType,
	hasLast bool,
	candidates []Candidate,
	now time.Time,
) Decision {
	bestScore := -1.0
	bestID := ""

	for _, c := range candidates {
		dist := 0.0
		if hasLast {
			dist = s.topology.HarmonicDistance(lastSpiralType, c.Type)
		}
		load := 0.0
		if c.Capacity > 0 {
			load = float64(c.NodeCount) / float64(c.Capacity)
		}
		age := now.Sub(c.CreatedAt).Seconds()

		score := s.weights.Distance*dist + s.weights.Load*load + s.weights.Age*age

		if bestScore < 0 || score < bestScore {
			bestScore = score
			bestID = c.ID
		}
	}

	if bestScore >= 0 && bestScore <= 1.0 {
		return Decision{UseExisting: bestID}
	}

	newType := model.SpiralTypeFor(memType, depth)
	if len(candidates) >= s.maxSpirals {
		return Decision{CreateNew: true, NewType: newType, AtCapacity: true}
	}
	return Decision{CreateNew: true, NewType: newType}
}
