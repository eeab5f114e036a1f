// Package storage defines the key/value store that backs per-visitor state
// (the server-side counterpart of browser local storage).
package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrQuotaExceeded is returned when a value does not fit the store's quota
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Store is a flat string key/value store. Each call is atomic on its own;
// nothing is transactional across keys.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process Store
type Memory struct {
	mu   sync.RWMutex
	data map[string]string

	// MaxValueBytes rejects larger values with ErrQuotaExceeded; 0 disables the check
	MaxValueBytes int
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get returns the value stored under key
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set stores value under key
func (m *Memory) Set(_ context.Context, key, value string) error {
	if m.MaxValueBytes > 0 && len(value) > m.MaxValueBytes {
		return ErrQuotaExceeded
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Len returns the number of stored keys
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
