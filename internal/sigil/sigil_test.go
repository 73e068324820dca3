package sigil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/echocog/spiralmem/internal/model"
)

func TestEncode(t *testing.T) {
	t.Run("IsPureAndDeterministic", func(t *testing.T) {
		cfg := DefaultConfig()
		a := Encode(cfg, []byte("hello world"), model.TypeMemory, model.DepthSurface)
		b := Encode(cfg, []byte("hello world"), model.TypeMemory, model.DepthSurface)
		assert.Equal(t, a, b)
	})

	t.Run("DifferentContentYieldsDifferentSignature", func(t *testing.T) {
		cfg := DefaultConfig()
		a := Encode(cfg, []byte("hello"), model.TypeMemory, model.DepthSurface)
		b := Encode(cfg, []byte("goodbye"), model.TypeMemory, model.DepthSurface)
		assert.NotEqual(t, a.Signature, b.Signature)
	})

	t.Run("SignaturePrefixedByTypeAndDepthSymbols", func(t *testing.T) {
		cfg := DefaultConfig()
		s := Encode(cfg, []byte("x"), model.TypeMemory, model.DepthSurface)
		assert.Equal(t, model.TypeMemory.Symbol()+model.DepthSurface.Symbol(), s.Signature[:len(model.TypeMemory.Symbol())+len(model.DepthSurface.Symbol())])
	})

	t.Run("HashSliceTruncatesToConfiguredLength", func(t *testing.T) {
		cfg := Config{HashSlice: 3, Sides: 13}
		s := Encode(cfg, []byte("some content"), model.TypeMemory, model.DepthSurface)
		prefixLen := len(model.TypeMemory.Symbol()) + len(model.DepthSurface.Symbol())
		assert.LessOrEqual(t, len(s.Signature)-prefixLen, 3)
	})

	t.Run("ComplexityIsClampedToUnitInterval", func(t *testing.T) {
		cfg := DefaultConfig()
		huge := make([]byte, 10000)
		s := Encode(cfg, huge, model.TypeMemory, model.DepthSurface)
		assert.GreaterOrEqual(t, s.Complexity, 0.0)
		assert.LessOrEqual(t, s.Complexity, 1.0)

		empty := Encode(cfg, []byte{}, model.TypeMemory, model.DepthSurface)
		assert.GreaterOrEqual(t, empty.Complexity, 0.0)
		assert.LessOrEqual(t, empty.Complexity, 1.0)
	})

	t.Run("GeometryHasConfiguredSideCount", func(t *testing.T) {
		cfg := Config{HashSlice: 10, Sides: 7}
		s := Encode(cfg, []byte("shape"), model.TypeMemory, model.DepthSurface)
		assert.Equal(t, 7, s.Geometry.Sides)
		assert.Len(t, s.Geometry.Angles, 7)
		for _, a := range s.Geometry.Angles {
			assert.GreaterOrEqual(t, a, 0.0)
			assert.Less(t, a, 360.0)
		}
	})

	t.Run("ZeroSidesFallsBackToThirteen", func(t *testing.T) {
		cfg := Config{HashSlice: 10, Sides: 0}
		s := Encode(cfg, []byte("x"), model.TypeMemory, model.DepthSurface)
		assert.Equal(t, 13, s.Geometry.Sides)
	})

	t.Run("ResonanceIsWithinTypeBaseFreqPlusFiftyBand", func(t *testing.T) {
		cfg := DefaultConfig()
		s := Encode(cfg, []byte("resonant"), model.TypeMemory, model.DepthSurface)
		assert.GreaterOrEqual(t, s.ResonanceHz, model.TypeMemory.BaseFreq())
		assert.LessOrEqual(t, s.ResonanceHz, model.TypeMemory.BaseFreq()+50.0)
	})
}

func TestRollingHash(t *testing.T) {
	t.Run("EmptyInputIsZero", func(t *testing.T) {
		assert.Equal(t, uint32(0), rollingHash(nil))
	})

	t.Run("IsOrderSensitive", func(t *testing.T) {
		assert.NotEqual(t, rollingHash([]byte("ab")), rollingHash([]byte("ba")))
	})
}

func TestBase36(t *testing.T) {
	t.Run("RendersLowercaseAlphanumeric", func(t *testing.T) {
		s := base36(12345)
		for _, r := range s {
			assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z'))
		}
	})
}
