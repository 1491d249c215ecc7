package storage

import (
	"encoding/json"
	"sync"

	"github.com/codyrutscher/voting-app/internal/apperr"
)

// Namespace is a prefix-scoped, JSON-encoding view over a Backend. All
// failure modes degrade: reads fall back to the caller's default, write
// failures are captured in LastError instead of propagating, so callers can
// keep running in-memory when persistence is unavailable.
//
// A nil backend is a valid "storage unsupported" configuration.
type Namespace[T any] struct {
	backend Backend
	watcher Watcher
	prefix  string

	mu          sync.Mutex
	lastErr     *apperr.AppError
	lastWritten map[string]string
}

// NewNamespace builds an adapter for keys of the form prefix+key. watcher
// may be nil when external change adoption is not needed.
func NewNamespace[T any](backend Backend, watcher Watcher, prefix string) *Namespace[T] {
	return &Namespace[T]{
		backend:     backend,
		watcher:     watcher,
		prefix:      prefix,
		lastWritten: make(map[string]string),
	}
}

// Supported reports whether a backing facility is present at all.
func (n *Namespace[T]) Supported() bool { return n.backend != nil }

// LastError returns the most recent storage failure, or nil.
func (n *Namespace[T]) LastError() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastErr == nil {
		return nil
	}
	return n.lastErr
}

// Read returns the stored value for key, or def when the backend is absent,
// the key is missing, or the stored form does not parse. Parse and I/O
// failures are recorded, never thrown.
func (n *Namespace[T]) Read(key string, def T) T {
	if n.backend == nil {
		return def
	}
	full := n.prefix + key
	raw, ok, err := n.backend.Get(full)
	if err != nil {
		n.record(apperr.Storage("read_failed", "could not read saved state", err))
		return def
	}
	if !ok {
		return def
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		n.record(apperr.Storage("corrupt_state", "saved state could not be parsed", err))
		return def
	}
	n.mu.Lock()
	n.lastWritten[key] = raw
	n.mu.Unlock()
	return v
}

// Write persists the value. Serialization or backend failures are recorded;
// the caller's in-memory copy remains the source of truth either way.
func (n *Namespace[T]) Write(key string, v T) {
	raw, err := json.Marshal(v)
	if err != nil {
		n.record(apperr.Storage("encode_failed", "could not encode state", err))
		return
	}
	n.mu.Lock()
	n.lastWritten[key] = string(raw)
	n.mu.Unlock()
	if n.backend == nil {
		return
	}
	if err := n.backend.Set(n.prefix+key, string(raw)); err != nil {
		n.record(apperr.Storage("write_failed", "could not save state", err))
	}
}

// Remove deletes the stored value for key.
func (n *Namespace[T]) Remove(key string) {
	n.mu.Lock()
	delete(n.lastWritten, key)
	n.mu.Unlock()
	if n.backend == nil {
		return
	}
	if err := n.backend.Delete(n.prefix + key); err != nil {
		n.record(apperr.Storage("remove_failed", "could not remove saved state", err))
	}
}

// Clear removes every key under this namespace's prefix.
func (n *Namespace[T]) Clear() {
	n.mu.Lock()
	n.lastWritten = make(map[string]string)
	n.mu.Unlock()
	if n.backend == nil {
		return
	}
	keys, err := n.backend.Keys(n.prefix)
	if err != nil {
		n.record(apperr.Storage("clear_failed", "could not list saved state", err))
		return
	}
	for _, full := range keys {
		if err := n.backend.Delete(full); err != nil {
			n.record(apperr.Storage("clear_failed", "could not remove saved state", err))
		}
	}
}

// Watch subscribes to external changes of key. fn receives the parsed value
// and presence flag; deletions arrive as (zero, false). Echoes of this
// adapter's own writes are suppressed by comparing serialized forms. The
// returned stop function is always non-nil.
func (n *Namespace[T]) Watch(key string, fn func(value T, present bool)) func() {
	if n.watcher == nil {
		return func() {}
	}
	stop, err := n.watcher.Watch(n.prefix+key, func(ev Event) {
		if ev.Deleted {
			n.mu.Lock()
			delete(n.lastWritten, key)
			n.mu.Unlock()
			var zero T
			fn(zero, false)
			return
		}
		n.mu.Lock()
		echo := n.lastWritten[key] == ev.Value
		if !echo {
			n.lastWritten[key] = ev.Value
		}
		n.mu.Unlock()
		if echo {
			return
		}
		var v T
		if err := json.Unmarshal([]byte(ev.Value), &v); err != nil {
			n.record(apperr.Storage("corrupt_state", "external state change could not be parsed", err))
			return
		}
		fn(v, true)
	})
	if err != nil {
		n.record(apperr.Storage("watch_failed", "could not watch saved state", err))
		return func() {}
	}
	return stop
}

func (n *Namespace[T]) record(err *apperr.AppError) {
	n.mu.Lock()
	n.lastErr = err
	n.mu.Unlock()
}
