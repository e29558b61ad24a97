package completion

import (
	"context"
	"sync"
)

// MemoryBackend keeps completion lists in process memory.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]string
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]string)}
}

func (m *MemoryBackend) Load(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.data[key]
	out := make([]string, len(ids))
	copy(out, ids)
	return out, nil
}

func (m *MemoryBackend) Save(_ context.Context, key string, ids []string) error {
	stored := make([]string, len(ids))
	copy(stored, ids)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = stored
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
