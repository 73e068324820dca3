package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend(t *testing.T) {
	t.Run("SetGetDelRoundTrip", func(t *testing.T) {
		m := NewMemoryBackend()
		require.NoError(t, m.Init(context.Background()))

		require.NoError(t, m.Set(context.Background(), "k", []byte("v")))
		v, ok, err := m.Get(context.Background(), "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "v", string(v))

		require.NoError(t, m.Del(context.Background(), "k"))
		_, ok, err = m.Get(context.Background(), "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("GetReturnsACopyNotTheStoredSlice", func(t *testing.T) {
		m := NewMemoryBackend()
		require.NoError(t, m.Set(context.Background(), "k", []byte("v")))

		v, _, err := m.Get(context.Background(), "k")
		require.NoError(t, err)
		v[0] = 'z'

		v2, _, err := m.Get(context.Background(), "k")
		require.NoError(t, err)
		assert.Equal(t, "v", string(v2))
	})

	t.Run("AtomicIncrAccumulates", func(t *testing.T) {
		m := NewMemoryBackend()
		v, err := m.AtomicIncr(context.Background(), "c", 5)
		require.NoError(t, err)
		assert.Equal(t, int64(5), v)

		v, err = m.AtomicIncr(context.Background(), "c", -2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), v)
	})

	t.Run("KeysFiltersByPrefix", func(t *testing.T) {
		m := NewMemoryBackend()
		require.NoError(t, m.Set(context.Background(), "mem:1", []byte("a")))
		require.NoError(t, m.Set(context.Background(), "spiral:1", []byte("b")))

		keys, err := m.Keys(context.Background(), "mem:")
		require.NoError(t, err)
		assert.Equal(t, []string{"mem:1"}, keys)
	})
}
