package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echocog/spiralmem/internal/model"
)

func TestNodeCodec(t *testing.T) {
	t.Run("RoundTripsIncludingAssociations", func(t *testing.T) {
		n := &model.MemoryNode{
			ID: "n1", Content: []byte("hi"), Type: model.TypeMemory, Depth: model.DepthSurface,
			Sigil: model.Sigil{Signature: "sig1"}, SpiralID: "sp1",
			Position:       model.Position{X: 1, Y: 2, Turn: 3},
			Associations:   map[string]struct{}{"n2": {}, "n3": {}},
			CreatedAt:      time.Now().UTC().Truncate(time.Second),
			LastAccessedAt: time.Now().UTC().Truncate(time.Second),
			AccessCount:    4, MemoryStrength: 0.75, SkipCount: 1,
		}

		data, err := encodeNode(n)
		require.NoError(t, err)

		decoded, err := decodeNode(data)
		require.NoError(t, err)

		assert.Equal(t, n.ID, decoded.ID)
		assert.Equal(t, n.SpiralID, decoded.SpiralID)
		assert.Equal(t, n.AccessCount, decoded.AccessCount)
		assert.Equal(t, n.MemoryStrength, decoded.MemoryStrength)
		assert.Len(t, decoded.Associations, 2)
		_, ok := decoded.Associations["n2"]
		assert.True(t, ok)
	})
}

func TestSpiralCodec(t *testing.T) {
	t.Run("RoundTripsWithoutNodeSet", func(t *testing.T) {
		sp := &model.Spiral{
			ID: "sp1", Type: model.SpiralFibonacci, Template: model.TemplateFor(model.SpiralFibonacci),
			NodeCount: 3, AverageDepth: 0.5, CurrentRadius: 2.0, TotalTurns: 1,
			Nodes: map[string]struct{}{"n1": {}},
		}

		data, err := encodeSpiral(sp)
		require.NoError(t, err)

		decoded, err := decodeSpiral(data)
		require.NoError(t, err)

		assert.Equal(t, sp.ID, decoded.ID)
		assert.Equal(t, sp.NodeCount, decoded.NodeCount)
		assert.Empty(t, decoded.Nodes, "node-id set is reconstructed from mem:* records on reload, not carried on the wire")
	})
}

func TestSigilRecordCodec(t *testing.T) {
	t.Run("RoundTrips", func(t *testing.T) {
		data, err := encodeSigilRecord("sig1", "n1")
		require.NoError(t, err)

		decoded, err := decodeSigilRecord(data)
		require.NoError(t, err)
		assert.Equal(t, "sig1", decoded.Signature)
		assert.Equal(t, "n1", decoded.MemoryID)
	})
}
