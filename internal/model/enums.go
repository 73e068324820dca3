// Package model holds the closed enumerations and entities of the spiral
// memory data model (spec.md §3).
package model

// MemoryType is the closed set of memory categories a node can carry.
type MemoryType string

const (
	TypeConsciousness MemoryType = "consciousness"
	TypeAwareness     MemoryType = "awareness"
	TypeMemory        MemoryType = "memory"
	TypeInsight       MemoryType = "insight"
	TypeGoal          MemoryType = "goal"
	TypePattern       MemoryType = "pattern"
	TypeEmotion       MemoryType = "emotion"
	TypeCognitive     MemoryType = "cognitive"
	TypeGeneral       MemoryType = "general"
)

// ValidMemoryType reports whether t is one of the closed enumeration
// values. Unknown values are InvalidInput per spec.md §7.
func ValidMemoryType(t MemoryType) bool {
	switch t {
	case TypeConsciousness, TypeAwareness, TypeMemory, TypeInsight, TypeGoal,
		TypePattern, TypeEmotion, TypeCognitive, TypeGeneral:
		return true
	}
	return false
}

// typeSymbol is the two-character glyph used as the first half of a
// sigil signature. The core treats these as opaque tags (spec.md §1); it
// ascribes no meaning to them beyond producing a stable, printable prefix.
var typeSymbol = map[MemoryType]string{
	TypeConsciousness: "Cn",
	TypeAwareness:     "Aw",
	TypeMemory:        "Me",
	TypeInsight:       "In",
	TypeGoal:          "Go",
	TypePattern:       "Pa",
	TypeEmotion:       "Em",
	TypeCognitive:     "Co",
	TypeGeneral:       "Ge",
}

// Symbol returns the type's sigil-prefix glyph.
func (t MemoryType) Symbol() string { return typeSymbol[t] }

// typeBaseFreq is the base resonance frequency (Hz) used by the sigil
// encoder's resonance formula (spec.md §4.B).
var typeBaseFreq = map[MemoryType]float64{
	TypeConsciousness: 432.0,
	TypeAwareness:     396.0,
	TypeMemory:        528.0,
	TypeInsight:       639.0,
	TypeGoal:          741.0,
	TypePattern:       852.0,
	TypeEmotion:       963.0,
	TypeCognitive:     417.0,
	TypeGeneral:       256.0,
}

// BaseFreq returns the type's base resonance frequency in Hz.
func (t MemoryType) BaseFreq() float64 { return typeBaseFreq[t] }

// typeWeight feeds the sigil encoder's complexity formula.
var typeWeight = map[MemoryType]float64{
	TypeConsciousness: 1.0,
	TypeAwareness:     0.8,
	TypeMemory:        0.5,
	TypeInsight:       0.9,
	TypeGoal:          0.7,
	TypePattern:       0.6,
	TypeEmotion:       0.6,
	TypeCognitive:     0.8,
	TypeGeneral:       0.3,
}

// Weight returns the type's complexity-formula weight.
func (t MemoryType) Weight() float64 { return typeWeight[t] }

// MemoryDepth is the closed, ordered set of depth tiers a node can carry.
type MemoryDepth string

const (
	DepthSurface      MemoryDepth = "surface"
	DepthShallow      MemoryDepth = "shallow"
	DepthDeep         MemoryDepth = "deep"
	DepthCore         MemoryDepth = "core"
	DepthTranscendent MemoryDepth = "transcendent"
	DepthUniversal    MemoryDepth = "universal"
	DepthInfinite     MemoryDepth = "infinite"
)

// depthWeight is the numeric weight table from spec.md §3.
var depthWeight = map[MemoryDepth]float64{
	DepthSurface:      0.2,
	DepthShallow:      0.4,
	DepthDeep:         0.7,
	DepthCore:         0.9,
	DepthTranscendent: 1.0,
	DepthUniversal:    1.0,
	DepthInfinite:     1.0,
}

// Weight returns the depth's numeric weight.
func (d MemoryDepth) Weight() float64 { return depthWeight[d] }

// ValidMemoryDepth reports whether d is one of the closed enumeration
// values.
func ValidMemoryDepth(d MemoryDepth) bool {
	_, ok := depthWeight[d]
	return ok
}

var depthSymbol = map[MemoryDepth]string{
	DepthSurface:      "s",
	DepthShallow:      "h",
	DepthDeep:         "d",
	DepthCore:         "c",
	DepthTranscendent: "t",
	DepthUniversal:    "u",
	DepthInfinite:     "i",
}

// Symbol returns the depth's sigil-prefix glyph.
func (d MemoryDepth) Symbol() string { return depthSymbol[d] }

// GCExempt reports whether nodes at this depth are exempt from natural
// GC eviction under spec.md §4.E / property P5.
func (d MemoryDepth) GCExempt() bool {
	switch d {
	case DepthCore, DepthTranscendent, DepthUniversal, DepthInfinite:
		return true
	}
	return false
}

// SpiralType is the closed set of insertion-channel kinds.
type SpiralType string

const (
	SpiralFibonacci            SpiralType = "fibonacci"
	SpiralGolden               SpiralType = "golden"
	SpiralLogarithmic          SpiralType = "logarithmic"
	SpiralArchimedean          SpiralType = "archimedean"
	SpiralConsciousness        SpiralType = "consciousness"
	SpiralEmotionalDepth       SpiralType = "emotional_depth"
	SpiralEmpathyResonance     SpiralType = "empathy_resonance"
	SpiralContextualAwareness SpiralType = "contextual_awareness"
	SpiralInsightSynthesis     SpiralType = "insight_synthesis"
	SpiralCreativePotential    SpiralType = "creative_potential"
)

// ValidSpiralType reports whether t is one of the closed enumeration
// values.
func ValidSpiralType(t SpiralType) bool {
	switch t {
	case SpiralFibonacci, SpiralGolden, SpiralLogarithmic, SpiralArchimedean,
		SpiralConsciousness, SpiralEmotionalDepth, SpiralEmpathyResonance,
		SpiralContextualAwareness, SpiralInsightSynthesis, SpiralCreativePotential:
		return true
	}
	return false
}

// Template holds a spiral type's immutable parameters (spec.md §3).
type Template struct {
	GrowthRate   float64
	TurnAngleDeg float64
	Capacity     int
	ResonanceHz  float64
}

// templates is the closed parameter table for every SpiralType.
var templates = map[SpiralType]Template{
	SpiralFibonacci:            {GrowthRate: 1.618033988749, TurnAngleDeg: 137.507764, Capacity: 1000, ResonanceHz: 432.0},
	SpiralGolden:               {GrowthRate: 1.618033988749, TurnAngleDeg: 137.507764, Capacity: 1000, ResonanceHz: 440.0},
	SpiralLogarithmic:          {GrowthRate: 1.2, TurnAngleDeg: 137.507764, Capacity: 1000, ResonanceHz: 396.0},
	SpiralArchimedean:          {GrowthRate: 1.0, TurnAngleDeg: 137.507764, Capacity: 1000, ResonanceHz: 528.0},
	SpiralConsciousness:        {GrowthRate: 1.618033988749, TurnAngleDeg: 137.507764, Capacity: 500, ResonanceHz: 432.0},
	SpiralEmotionalDepth:       {GrowthRate: 1.3, TurnAngleDeg: 137.507764, Capacity: 500, ResonanceHz: 963.0},
	SpiralEmpathyResonance:     {GrowthRate: 1.4, TurnAngleDeg: 137.507764, Capacity: 500, ResonanceHz: 639.0},
	SpiralContextualAwareness: {GrowthRate: 1.1, TurnAngleDeg: 137.507764, Capacity: 500, ResonanceHz: 396.0},
	SpiralInsightSynthesis:     {GrowthRate: 1.5, TurnAngleDeg: 137.507764, Capacity: 500, ResonanceHz: 741.0},
	SpiralCreativePotential:    {GrowthRate: 1.25, TurnAngleDeg: 137.507764, Capacity: 500, ResonanceHz: 852.0},
}

// TemplateFor returns the immutable parameters for a spiral type.
func TemplateFor(t SpiralType) Template { return templates[t] }

// TurnsPerSpiral is how many node insertions make up one full turn for the
// purposes of Position.Turn in spec.md §4.C.
const TurnsPerSpiral = 13

// SpiralTypeFor is the deterministic (memory type, depth) -> spiral type
// function spec.md §4.C requires when a new spiral must be created. It is
// a closed, total mapping, not a symbolic/meaningful one (spec.md §1).
func SpiralTypeFor(t MemoryType, d MemoryDepth) SpiralType {
	switch t {
	case TypeConsciousness:
		return SpiralConsciousness
	case TypeEmotion:
		return SpiralEmotionalDepth
	case TypeAwareness:
		return SpiralContextualAwareness
	case TypeInsight:
		return SpiralInsightSynthesis
	case TypePattern:
		return SpiralCreativePotential
	}
	if d.GCExempt() {
		return SpiralGolden
	}
	switch d {
	case DepthDeep:
		return SpiralLogarithmic
	case DepthSurface, DepthShallow:
		return SpiralArchimedean
	default:
		return SpiralFibonacci
	}
}
