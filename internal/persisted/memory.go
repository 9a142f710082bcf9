package persisted

import (
	"context"
	"sync"
)

// Memory is a process-local Store.
type Memory struct {
	mu      sync.RWMutex
	queries map[string]string
}

func NewMemory() *Memory {
	return &Memory{queries: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, hash string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queries[hash]
	if !ok {
		return "", ErrNotFound
	}
	return q, nil
}

func (m *Memory) Put(_ context.Context, hash, query string) error {
	m.mu.Lock()
	m.queries[hash] = query
	m.mu.Unlock()
	return nil
}
