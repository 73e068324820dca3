// Package spiral implements spiral selection and parametric node placement
// (spec.md §4.C). Selection picks (or creates) the spiral a new node
// lands in; Position computes its bit-stable (angle, radius, x, y, turn).
package spiral

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/echocog/spiralmem/internal/model"
)

// Phi is the golden ratio used by several position formulas.
const Phi = 1.618033988749

// allTypes is the closed enumeration this package iterates when building
// the routing table.
var allTypes = []model.SpiralType{
	model.SpiralFibonacci, model.SpiralGolden, model.SpiralLogarithmic,
	model.SpiralArchimedean, model.SpiralConsciousness, model.SpiralEmotionalDepth,
	model.SpiralEmpathyResonance, model.SpiralContextualAwareness,
	model.SpiralInsightSynthesis, model.SpiralCreativePotential,
}

// Topology holds the routing-table vectors derived once at init from
// spiral-type parameters (spec.md §4.C: "derived once at init"). Harmonic
// distance between two spirals is the Euclidean distance of these
// vectors.
type Topology struct {
	routing map[model.SpiralType][]float64
}

// NewTopology builds the routing table from the closed SpiralType
// template enumeration.
func NewTopology() *Topology {
	t := &Topology{routing: make(map[model.SpiralType][]float64, len(allTypes))}
	for _, st := range allTypes {
		tpl := model.TemplateFor(st)
		t.routing[st] = []float64{
			tpl.GrowthRate,
			tpl.TurnAngleDeg / 360.0,
			float64(tpl.Capacity) / 1000.0,
			tpl.ResonanceHz / 1000.0,
		}
	}
	return t
}

// HarmonicDistance is the Euclidean distance between two spiral types'
// routing-table vectors.
func (t *Topology) HarmonicDistance(a, b model.SpiralType) float64 {
	va, ok := t.routing[a]
	if !ok {
		return 0
	}
	vb, ok := t.routing[b]
	if !ok {
		return 0
	}
	diff := make([]float64, len(va))
	copy(diff, va)
	floats.SubTo(diff, diff, vb)
	return floats.Norm(diff, 2)
}

// Weights are the configurable selection weights of spec.md §4.C.
type Weights struct {
	Distance float64
	Load     float64
	Age      float64
}

// DefaultWeights matches spec.md's documented defaults (0.5/0.3/0.2).
func DefaultWeights() Weights {
	return Weights{Distance: 0.5, Load: 0.3, Age: 0.2}
}

// radiusFormula computes the per-type radius contribution for a new
// node at 0-based index k (spec.md §4.C). The five spiral types spec.md
// gives literal formulas for are exact; the five "derived" types (
// emotional_depth, empathy_resonance, contextual_awareness,
// insight_synthesis, creative_potential) are not named by a geometric
// family in spec.md, so they share the consciousness formula — see
// DESIGN.md for this Open Question's resolution.
func radiusFormula(st model.SpiralType, g float64, k int) float64 {
	kf := float64(k)
	switch st {
	case model.SpiralFibonacci:
		return math.Sqrt(kf * g)
	case model.SpiralGolden:
		return math.Pow(g, kf/10.0)
	case model.SpiralLogarithmic:
		return math.Exp(0.1 * kf * g)
	case model.SpiralArchimedean:
		return 1 + 0.1*kf*g
	default: // consciousness and the five derived types
		return math.Pow(Phi, kf/13.0)
	}
}

// Position computes a new node's parametric placement within a spiral
// that already has nodeCount nodes (k = nodeCount, 0-based).
func Position(st model.SpiralType, nodeCount int) model.Position {
	tpl := model.TemplateFor(st)
	k := nodeCount

	angle := math.Mod(float64(k)*tpl.TurnAngleDeg, 360.0)
	radius := radiusFormula(st, tpl.GrowthRate, k)

	rad := angle * math.Pi / 180.0
	x := radius * math.Cos(rad)
	y := radius * math.Sin(rad)
	turn := k / model.TurnsPerSpiral

	return model.Position{
		AngleDeg:  angle,
		Radius:    radius,
		X:         x,
		Y:         y,
		Turn:      turn,
		NodeIndex: k,
	}
}
