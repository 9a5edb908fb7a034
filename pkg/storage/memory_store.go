package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps objects in-process. It backs tests and local runs
// without MinIO.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]string
}

// NewMemoryStore initializes an empty in-memory object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]string)}
}

func (m *MemoryStore) PutText(_ context.Context, key, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = content
	return nil
}

func (m *MemoryStore) GetText(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.objects[key]
	if !ok {
		return "", fmt.Errorf("object %q not found", key)
	}
	return content, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}
