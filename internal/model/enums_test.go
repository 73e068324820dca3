package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryTypeTables(t *testing.T) {
	t.Run("EveryValidTypeHasSymbolFreqAndWeight", func(t *testing.T) {
		for _, mt := range []MemoryType{
			TypeConsciousness, TypeAwareness, TypeMemory, TypeInsight, TypeGoal,
			TypePattern, TypeEmotion, TypeCognitive, TypeGeneral,
		} {
			assert.True(t, ValidMemoryType(mt))
			assert.NotEmpty(t, mt.Symbol())
			assert.Greater(t, mt.BaseFreq(), 0.0)
			assert.GreaterOrEqual(t, mt.Weight(), 0.0)
			assert.LessOrEqual(t, mt.Weight(), 1.0)
		}
	})

	t.Run("UnknownTypeIsInvalid", func(t *testing.T) {
		assert.False(t, ValidMemoryType(MemoryType("bogus")))
	})
}

func TestMemoryDepthTables(t *testing.T) {
	t.Run("WeightsAreMonotonicInDepth", func(t *testing.T) {
		assert.Less(t, DepthSurface.Weight(), DepthShallow.Weight())
		assert.Less(t, DepthShallow.Weight(), DepthDeep.Weight())
		assert.Less(t, DepthDeep.Weight(), DepthCore.Weight())
	})

	t.Run("OnlyDeepestTiersAreGCExempt", func(t *testing.T) {
		assert.False(t, DepthSurface.GCExempt())
		assert.False(t, DepthShallow.GCExempt())
		assert.False(t, DepthDeep.GCExempt())
		assert.True(t, DepthCore.GCExempt())
		assert.True(t, DepthTranscendent.GCExempt())
		assert.True(t, DepthUniversal.GCExempt())
		assert.True(t, DepthInfinite.GCExempt())
	})

	t.Run("UnknownDepthIsInvalid", func(t *testing.T) {
		assert.False(t, ValidMemoryDepth(MemoryDepth("bogus")))
	})
}

func TestSpiralTypeFor(t *testing.T) {
	t.Run("ConsciousnessTypeMapsToConsciousnessSpiral", func(t *testing.T) {
		assert.Equal(t, SpiralConsciousness, SpiralTypeFor(TypeConsciousness, DepthSurface))
	})

	t.Run("GCExemptDepthMapsToGoldenRegardlessOfType", func(t *testing.T) {
		assert.Equal(t, SpiralGolden, SpiralTypeFor(TypeGeneral, DepthCore))
	})

	t.Run("DeepNonSpecialTypeMapsToLogarithmic", func(t *testing.T) {
		assert.Equal(t, SpiralLogarithmic, SpiralTypeFor(TypeGeneral, DepthDeep))
	})

	t.Run("SurfaceNonSpecialTypeMapsToArchimedean", func(t *testing.T) {
		assert.Equal(t, SpiralArchimedean, SpiralTypeFor(TypeGeneral, DepthSurface))
	})

	t.Run("IsTotalOverAllCombinations", func(t *testing.T) {
		types := []MemoryType{TypeConsciousness, TypeAwareness, TypeMemory, TypeInsight, TypeGoal, TypePattern, TypeEmotion, TypeCognitive, TypeGeneral}
		depths := []MemoryDepth{DepthSurface, DepthShallow, DepthDeep, DepthCore, DepthTranscendent, DepthUniversal, DepthInfinite}
		for _, mt := range types {
			for _, d := range depths {
				st := SpiralTypeFor(mt, d)
				assert.True(t, ValidSpiralType(st))
			}
		}
	})
}

func TestTemplateFor(t *testing.T) {
	t.Run("EveryValidSpiralTypeHasATemplate", func(t *testing.T) {
		for _, st := range []SpiralType{
			SpiralFibonacci, SpiralGolden, SpiralLogarithmic, SpiralArchimedean,
			SpiralConsciousness, SpiralEmotionalDepth, SpiralEmpathyResonance,
			SpiralContextualAwareness, SpiralInsightSynthesis, SpiralCreativePotential,
		} {
			tpl := TemplateFor(st)
			assert.Greater(t, tpl.GrowthRate, 0.0)
			assert.Greater(t, tpl.Capacity, 0)
			assert.Greater(t, tpl.ResonanceHz, 0.0)
		}
	})
}
