package objectstore

import (
	"context"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps objects in process memory. The API serves them back
// under the public base URL so local setups work without a bucket.
type MemoryStore struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string]Object
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: baseURL,
		objects: make(map[string]Object),
	}
}

func (m *MemoryStore) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	buf := make([]byte, len(body))
	copy(buf, body)

	m.mu.Lock()
	m.objects[key] = Object{ContentType: contentType, Body: buf}
	m.mu.Unlock()

	return joinURL(m.baseURL, key), nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &obj, nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
