package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"servicehealth/internal/types"
)

// Blob is a stored object.
type Blob struct {
	Body        []byte
	ContentType string
}

// PutHook runs after a successful Put under a watched prefix, standing in
// for an S3 object-created notification.
type PutHook func(ctx context.Context, key string) error

type watch struct {
	prefix string
	hook   PutHook
}

// MemoryStore keeps blobs in memory for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	blobs   map[string]Blob
	watches []watch
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]Blob)}
}

// OnPut registers hook for keys starting with prefix.
func (m *MemoryStore) OnPut(prefix string, hook PutHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watches = append(m.watches, watch{prefix: prefix, hook: hook})
}

// Put stores body and then runs matching hooks synchronously.
func (m *MemoryStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	m.mu.Lock()
	m.blobs[key] = Blob{Body: append([]byte(nil), body...), ContentType: contentType}
	var hooks []PutHook
	for _, w := range m.watches {
		if strings.HasPrefix(key, w.prefix) {
			hooks = append(hooks, w.hook)
		}
	}
	m.mu.Unlock()

	for _, h := range hooks {
		if err := h(ctx, key); err != nil {
			return fmt.Errorf("storage: put hook for %s: %w", key, err)
		}
	}
	return nil
}

// Get returns the body stored under key.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeMalformedInput, fmt.Sprintf("blob %q does not exist", key), nil)
	}
	return append([]byte(nil), b.Body...), nil
}

// Keys lists stored keys with the given prefix in lexical order.
func (m *MemoryStore) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Blob returns the stored object under key.
func (m *MemoryStore) Blob(key string) (Blob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	return b, ok
}
