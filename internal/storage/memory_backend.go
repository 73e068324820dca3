package storage

import (
	"context"
	"strings"
	"sync"

	"github.com/echocog/spiralmem/internal/storeerr"
)

// MemoryBackend is the in-process Adapter used by tests (spec.md §4.A:
// "in-memory (tests)").
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryBackend constructs an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (m *MemoryBackend) Init(ctx context.Context) error { return nil }

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryBackend) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *MemoryBackend) AtomicIncr(ctx context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := int64(0)
	if v, ok := m.data[key]; ok {
		var err error
		cur, err = decodeInt64(v)
		if err != nil {
			return 0, storeerr.Wrap(storeerr.InvariantViolation, "corrupt counter at "+key, err)
		}
	}
	cur += delta
	m.data[key] = encodeInt64(cur)
	return cur, nil
}

func (m *MemoryBackend) Close() error { return nil }

var _ Adapter = (*MemoryBackend)(nil)
