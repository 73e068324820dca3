package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLFUCache(t *testing.T) {
	t.Run("GetMissOnEmptyCache", func(t *testing.T) {
		c := newLFUCache(3)
		_, ok := c.Get("sig1")
		assert.False(t, ok)
	})

	t.Run("PutThenGetRoundTrips", func(t *testing.T) {
		c := newLFUCache(3)
		c.Put("sig1", "node1")
		id, ok := c.Get("sig1")
		require.True(t, ok)
		assert.Equal(t, "node1", id)
	})

	t.Run("EvictsLeastFrequentlyUsed", func(t *testing.T) {
		c := newLFUCache(2)
		c.Put("sig1", "node1")
		c.Put("sig2", "node2")
		// bump sig1's frequency so sig2 is the LFU victim
		c.Get("sig1")
		c.Get("sig1")

		c.Put("sig3", "node3")

		_, ok := c.Get("sig2")
		assert.False(t, ok, "sig2 should have been evicted as least-frequently-used")
		_, ok = c.Get("sig1")
		assert.True(t, ok)
		_, ok = c.Get("sig3")
		assert.True(t, ok)
	})

	t.Run("TiesBrokenByInsertionOrder", func(t *testing.T) {
		c := newLFUCache(2)
		c.Put("sig1", "node1")
		c.Put("sig2", "node2")

		c.Put("sig3", "node3")

		_, ok := c.Get("sig1")
		assert.False(t, ok, "oldest entry should be evicted on a frequency tie")
	})

	t.Run("RemoveDropsEntry", func(t *testing.T) {
		c := newLFUCache(3)
		c.Put("sig1", "node1")
		c.Remove("sig1")
		_, ok := c.Get("sig1")
		assert.False(t, ok)
	})

	t.Run("UnboundedCapacityNeverEvicts", func(t *testing.T) {
		c := newLFUCache(0)
		for i := 0; i < 50; i++ {
			c.Put(string(rune('a'+i%26))+"x", "node")
		}
		assert.Len(t, c.value, 26)
	})
}
