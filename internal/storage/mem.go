package storage

import (
	"strings"
	"sync"
)

// MemBackend is an in-memory Backend that also implements Watcher: every
// Set and Delete is broadcast to subscribers of the affected key. Sharing
// one MemBackend between two adapters reproduces the way browser tabs share
// local storage, which makes cross-instance behavior testable without a
// filesystem.
type MemBackend struct {
	mu       sync.Mutex
	values   map[string]string
	handlers map[string][]*memHandler
}

type memHandler struct {
	fn func(Event)
}

var _ Backend = (*MemBackend)(nil)
var _ Watcher = (*MemBackend)(nil)

func NewMemBackend() *MemBackend {
	return &MemBackend{
		values:   make(map[string]string),
		handlers: make(map[string][]*memHandler),
	}
}

func (m *MemBackend) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemBackend) Set(key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	handlers := append([]*memHandler(nil), m.handlers[key]...)
	m.mu.Unlock()

	for _, h := range handlers {
		h.fn(Event{Key: key, Value: value})
	}
	return nil
}

func (m *MemBackend) Delete(key string) error {
	m.mu.Lock()
	delete(m.values, key)
	handlers := append([]*memHandler(nil), m.handlers[key]...)
	m.mu.Unlock()

	for _, h := range handlers {
		h.fn(Event{Key: key, Deleted: true})
	}
	return nil
}

func (m *MemBackend) Keys(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *MemBackend) Watch(key string, fn func(Event)) (func(), error) {
	h := &memHandler{fn: fn}
	m.mu.Lock()
	m.handlers[key] = append(m.handlers[key], h)
	m.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			list := m.handlers[key]
			for i, cand := range list {
				if cand == h {
					m.handlers[key] = append(list[:i], list[i+1:]...)
					break
				}
			}
		})
	}
	return stop, nil
}
