package storage

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const fileExt = ".json"

// DirBackend stores one file per key inside a state directory. Writes go
// through a temp file and rename so watchers never observe partial content.
type DirBackend struct {
	dir string
}

// NewDirBackend creates the state directory if needed.
func NewDirBackend(dir string) (*DirBackend, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("state dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &DirBackend{dir: dir}, nil
}

// Dir returns the backing directory.
func (b *DirBackend) Dir() string { return b.dir }

func (b *DirBackend) Get(key string) (string, bool, error) {
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(data), true, nil
}

func (b *DirBackend) Set(key, value string) error {
	target := b.path(key)
	tmp, err := os.CreateTemp(b.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (b *DirBackend) Delete(key string) error {
	if err := os.Remove(b.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (b *DirBackend) Keys(prefix string) ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("list state dir: %w", err)
	}
	var keys []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		key, ok := keyFromFile(entry.Name())
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (b *DirBackend) path(key string) string {
	return filepath.Join(b.dir, fileForKey(key))
}

// Keys may contain characters that are unsafe in filenames; escape them.
func fileForKey(key string) string {
	return url.PathEscape(key) + fileExt
}

func keyFromFile(name string) (string, bool) {
	if !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, ".tmp-") {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(name, fileExt))
	if err != nil {
		return "", false
	}
	return key, true
}

// DirWatcher turns filesystem notifications for a DirBackend's directory
// into per-key Events. It is the cross-process analogue of a browser's
// storage event.
type DirWatcher struct {
	dir     string
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	handlers map[string][]*dirHandler
	closed   bool
}

type dirHandler struct {
	fn func(Event)
}

// NewDirWatcher begins watching the directory and dispatching events.
func NewDirWatcher(dir string) (*DirWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	w := &DirWatcher{
		dir:      dir,
		watcher:  fsw,
		handlers: make(map[string][]*dirHandler),
	}
	go w.loop()
	return w, nil
}

func (w *DirWatcher) Watch(key string, fn func(Event)) (func(), error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, fmt.Errorf("watcher is closed")
	}
	h := &dirHandler{fn: fn}
	w.handlers[key] = append(w.handlers[key], h)

	var once sync.Once
	stop := func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			list := w.handlers[key]
			for i, cand := range list {
				if cand == h {
					w.handlers[key] = append(list[:i], list[i+1:]...)
					break
				}
			}
		})
	}
	return stop, nil
}

// Close stops dispatching. Pending handler invocations may still complete.
func (w *DirWatcher) Close() error {
	w.mu.Lock()
	w.closed = true
	w.handlers = make(map[string][]*dirHandler)
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *DirWatcher) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.dispatch(ev)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are not actionable per key; drop them.
		}
	}
}

func (w *DirWatcher) dispatch(ev fsnotify.Event) {
	key, ok := keyFromFile(filepath.Base(ev.Name))
	if !ok {
		return
	}

	w.mu.Lock()
	handlers := append([]*dirHandler(nil), w.handlers[key]...)
	w.mu.Unlock()
	if len(handlers) == 0 {
		return
	}

	var out Event
	switch {
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		// Rename is also how atomic writes land; re-check the file.
		data, err := os.ReadFile(ev.Name)
		if err != nil {
			out = Event{Key: key, Deleted: true}
		} else {
			out = Event{Key: key, Value: string(data)}
		}
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		data, err := os.ReadFile(ev.Name)
		if err != nil {
			return
		}
		out = Event{Key: key, Value: string(data)}
	default:
		return
	}

	for _, h := range handlers {
		h.fn(out)
	}
}
