package trace

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dyluth/warren/pkg/maze"
)

// MemoryStore keeps the trace in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	obs  []maze.Observation
	byID map[string]int
}

// NewMemoryStore returns an empty in-memory trace.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]int)}
}

// Record implements Store.
func (m *MemoryStore) Record(_ context.Context, plan maze.Plan, labels []maze.Label) (maze.Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, err := newObservation(len(m.obs), plan, labels)
	if err != nil {
		return maze.Observation{}, err
	}
	m.byID[o.ID] = len(m.obs)
	m.obs = append(m.obs, o)
	return o, nil
}

// Len implements Store.
func (m *MemoryStore) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.obs), nil
}

// Range implements Store.
func (m *MemoryStore) Range(_ context.Context, start, stop int) ([]maze.Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start, stop = clampRange(start, stop, len(m.obs))
	out := make([]maze.Observation, stop-start)
	copy(out, m.obs[start:stop])
	return out, nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (maze.Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.byID[id]
	if !ok {
		return maze.Observation{}, ErrNotFound
	}
	return m.obs[i], nil
}

// Scan implements Store.
func (m *MemoryStore) Scan(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id := range m.byID {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Ping implements Store.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

func clampRange(start, stop, n int) (int, int) {
	if start < 0 {
		start = 0
	}
	if stop > n {
		stop = n
	}
	if start > stop {
		start = stop
	}
	return start, stop
}
