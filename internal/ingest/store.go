package ingest

import (
	"context"
	"sync"
)

// Store holds datasets for the process lifetime. There is no eviction: a
// dataset id maps to at most one dataset until shutdown.
type Store interface {
	Put(ctx context.Context, d *Dataset) error
	Get(ctx context.Context, id string) (*Dataset, error)
	Count(ctx context.Context) int
}

// Compile-time assertion.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is the in-memory Store implementation. Datasets are immutable
// after Put, so Get hands out the shared pointer without copying.
type MemoryStore struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset
}

// NewMemoryStore creates an empty in-memory dataset store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{datasets: make(map[string]*Dataset)}
}

func (m *MemoryStore) Put(_ context.Context, d *Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[d.ID()] = d
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.datasets[id]
	if !ok {
		return nil, ErrDatasetNotFound
	}
	return d, nil
}

func (m *MemoryStore) Count(_ context.Context) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.datasets)
}
