package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func startWatcher(t *testing.T, cfg Config) *Watcher {
	t.Helper()
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(w.Stop)
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return w
}

// TestWatcherDetectsWrite verifies a write in the directory triggers OnChange.
func TestWatcherDetectsWrite(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	startWatcher(t, Config{
		Dir:      dir,
		Debounce: 30 * time.Millisecond,
		OnChange: func() { calls.Add(1) },
	})

	if err := os.WriteFile(filepath.Join(dir, "state.json"), []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return calls.Load() > 0 }) {
		t.Fatal("expected OnChange after write")
	}
}

// TestWatcherDetectsAtomicRename verifies temp-file-and-rename saves are seen.
func TestWatcherDetectsAtomicRename(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	startWatcher(t, Config{
		Dir:      dir,
		Match:    PrefixMatch("ns_state"),
		Debounce: 30 * time.Millisecond,
		OnChange: func() { calls.Add(1) },
	})

	tmp := filepath.Join(dir, ".tmp-123")
	if err := os.WriteFile(tmp, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, "ns_state.json")); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return calls.Load() > 0 }) {
		t.Fatal("expected OnChange after rename")
	}
}

// TestWatcherDebounce verifies a burst of writes produces one callback.
func TestWatcherDebounce(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	startWatcher(t, Config{
		Dir:      dir,
		Debounce: 150 * time.Millisecond,
		OnChange: func() { calls.Add(1) },
	})

	path := filepath.Join(dir, "daybucket.db")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte{byte(i)}, 0600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !waitFor(t, 2*time.Second, func() bool { return calls.Load() > 0 }) {
		t.Fatal("expected OnChange after burst")
	}
	time.Sleep(300 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 debounced callback, got %d", got)
	}
}

// TestWatcherIgnoresUnmatched verifies the Match filter.
func TestWatcherIgnoresUnmatched(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	startWatcher(t, Config{
		Dir:      dir,
		Match:    PrefixMatch("daybucket.db"),
		Debounce: 30 * time.Millisecond,
		OnChange: func() { calls.Add(1) },
	})

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if calls.Load() != 0 {
		t.Error("unmatched file should not trigger OnChange")
	}

	if err := os.WriteFile(filepath.Join(dir, "daybucket.db-wal"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return calls.Load() > 0 }) {
		t.Fatal("wal sibling should match the prefix")
	}
}

// TestWatcherCreatesDir verifies a missing directory is created on Start.
func TestWatcherCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	startWatcher(t, Config{Dir: dir})
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected directory %s to exist", dir)
	}
}

// TestWatcherStop verifies Stop is idempotent and blocks restart.
func TestWatcherStop(t *testing.T) {
	w, err := New(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
	if err := w.Start(); err == nil {
		t.Error("Start after Stop should fail")
	}
}

func TestNewRequiresDir(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty Dir")
	}
}
