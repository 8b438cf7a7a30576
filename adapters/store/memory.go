package store

import (
	"context"
	"errors"
	"sync"

	"github.com/javaboys/hunty/interview/domain/repositories"
)

// MemoryStore is a SessionStore that lives only as long as the process
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ repositories.SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements repositories.SessionStore
func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("key cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.values[key]
	if !exists {
		return "", repositories.ErrKeyNotFound
	}
	return value, nil
}

// Set implements repositories.SessionStore
func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

// Delete implements repositories.SessionStore. Deleting a missing key is not an error.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}
