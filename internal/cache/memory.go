package cache

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/peak-enrich/internal/model"
)

// Memory is a non-persistent Store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]model.Location
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]model.Location)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) (*model.Location, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &loc, true, nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, key string, loc model.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = loc
	return nil
}

// Flush implements Store. Memory has nothing to write.
func (m *Memory) Flush(context.Context) error { return nil }

// Close implements Store.
func (m *Memory) Close() error { return nil }

// Keys implements Lister.
func (m *Memory) Keys(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
