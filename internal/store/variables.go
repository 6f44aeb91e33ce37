package store

import (
	"context"
	"sync"
)

// MemoryVariables keeps variables in process memory. Values are lost on restart.
type MemoryVariables struct {
	mu   sync.RWMutex
	vars map[string]string
}

func NewMemoryVariables() *MemoryVariables {
	return &MemoryVariables{vars: make(map[string]string)}
}

func (m *MemoryVariables) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vars[key]
	return v, ok, nil
}

func (m *MemoryVariables) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vars[key] = value
	return nil
}

func (m *MemoryVariables) Close() error { return nil }
