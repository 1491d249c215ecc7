// Package storage provides the persistent key-value layer behind the vote
// state store: a pluggable backend, a change-observer capability for
// adopting writes made by other processes, and a namespaced, JSON-encoding
// adapter over both.
package storage

// Event describes an externally observed change to a single key.
type Event struct {
	Key     string
	Value   string
	Deleted bool
}

// Backend is the raw string-valued store. Implementations must tolerate
// concurrent use from multiple goroutines.
type Backend interface {
	// Get returns the stored value and whether the key was present.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	// Keys lists every stored key beginning with prefix.
	Keys(prefix string) ([]string, error)
}

// Watcher delivers change notifications for a single key. Handlers run on
// the watcher's own goroutine; callers must not block in them. The returned
// stop function unsubscribes and is safe to call more than once.
type Watcher interface {
	Watch(key string, fn func(Event)) (stop func(), err error)
}
