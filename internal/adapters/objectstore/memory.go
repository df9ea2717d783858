package objectstore

import (
	"context"
	"sync"
)

// Object is a stored blob.
type Object struct {
	Body        []byte
	ContentType string
}

// Memory keeps blobs in process. Used for local runs and tests.
type Memory struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]Object
}

// Compile-time interface check.
var _ Store = (*Memory)(nil)

// NewMemory creates an in-memory store whose URLs start with baseURL.
func NewMemory(baseURL string) *Memory {
	if baseURL == "" {
		baseURL = "memory://videos"
	}
	return &Memory{baseURL: baseURL, objects: make(map[string]Object)}
}

func (m *Memory) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if key == "" {
		return "", ErrEmptyKey
	}
	if len(body) == 0 {
		return "", ErrEmptyBody
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{Body: append([]byte(nil), body...), ContentType: contentType}
	return joinURL(m.baseURL, key), nil
}

// Get returns a stored object.
func (m *Memory) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	return o, ok
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
