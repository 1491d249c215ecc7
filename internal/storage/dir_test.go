package storage

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func TestDirBackend_SetGetDelete(t *testing.T) {
	b, err := NewDirBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirBackend returned error: %v", err)
	}

	if _, ok, err := b.Get("missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want absent without error", ok, err)
	}

	if err := b.Set("votes.s1", `{"a":1}`); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	got, ok, err := b.Get("votes.s1")
	if err != nil || !ok {
		t.Fatalf("Get = ok=%v err=%v, want present", ok, err)
	}
	if got != `{"a":1}` {
		t.Fatalf("Get = %q, want stored value", got)
	}

	if err := b.Delete("votes.s1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, ok, _ := b.Get("votes.s1"); ok {
		t.Fatalf("Get after Delete reports present")
	}
	// Deleting again is fine.
	if err := b.Delete("votes.s1"); err != nil {
		t.Fatalf("second Delete returned error: %v", err)
	}
}

func TestDirBackend_KeysFiltersByPrefix(t *testing.T) {
	b, err := NewDirBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirBackend returned error: %v", err)
	}
	for _, key := range []string{"votes.s1", "votes.s2", "meta.user_id"} {
		if err := b.Set(key, "x"); err != nil {
			t.Fatalf("Set(%q) returned error: %v", key, err)
		}
	}

	keys, err := b.Keys("votes.")
	if err != nil {
		t.Fatalf("Keys returned error: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "votes.s1" || keys[1] != "votes.s2" {
		t.Fatalf("Keys = %v, want [votes.s1 votes.s2]", keys)
	}
}

func TestDirBackend_EscapesUnsafeKeys(t *testing.T) {
	dir := t.TempDir()
	b, err := NewDirBackend(dir)
	if err != nil {
		t.Fatalf("NewDirBackend returned error: %v", err)
	}

	key := "votes.weird/..id"
	if err := b.Set(key, "v"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	got, ok, err := b.Get(key)
	if err != nil || !ok || got != "v" {
		t.Fatalf("Get = %q ok=%v err=%v, want round trip", got, ok, err)
	}

	// The value landed inside the state dir, not beside it.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("state dir has %d entries, want 1", len(entries))
	}
	if filepath.Dir(filepath.Join(dir, entries[0].Name())) != dir {
		t.Fatalf("entry escaped the state dir")
	}
}

func TestDirWatcher_DeliversWriteAndDelete(t *testing.T) {
	dir := t.TempDir()
	b, err := NewDirBackend(dir)
	if err != nil {
		t.Fatalf("NewDirBackend returned error: %v", err)
	}
	w, err := NewDirWatcher(dir)
	if err != nil {
		t.Fatalf("NewDirWatcher returned error: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	events := make(chan Event, 8)
	stop, err := w.Watch("votes.s1", func(ev Event) { events <- ev })
	if err != nil {
		t.Fatalf("Watch returned error: %v", err)
	}
	t.Cleanup(stop)

	if err := b.Set("votes.s1", "hello"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	ev := waitEvent(t, events)
	if ev.Deleted || ev.Value != "hello" {
		t.Fatalf("event = %#v, want value hello", ev)
	}

	// Writes to other keys must not reach this handler.
	if err := b.Set("votes.other", "noise"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	if err := b.Delete("votes.s1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	for {
		ev = waitEvent(t, events)
		if ev.Deleted {
			break
		}
		// Some platforms emit an extra write event before the remove.
	}
	if ev.Key != "votes.s1" {
		t.Fatalf("delete event key = %q, want votes.s1", ev.Key)
	}
}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for storage event")
		return Event{}
	}
}
