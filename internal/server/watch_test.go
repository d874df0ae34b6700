package server

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	dict := filepath.Join(dir, "dictionary.txt")
	if err := os.WriteFile(dict, []byte("hello HH AH L OW\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var reloads atomic.Int32
	w, err := NewWatcher([]string{dict}, func() error {
		reloads.Add(1)
		return nil
	}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if n := reloads.Load(); n != 0 {
		t.Fatalf("reloads = %d after unrelated write, want 0", n)
	}

	// Replace by rename, the way training promotes files.
	tmp := dict + ".tmp"
	if err := os.WriteFile(tmp, []byte("world W ER L D\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, dict); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for reloads.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if n := reloads.Load(); n != 1 {
		t.Errorf("reloads = %d, want 1 after debounced change", n)
	}
}

func TestNewWatcherMissingDir(t *testing.T) {
	_, err := NewWatcher([]string{"/nonexistent/dir/dictionary.txt"}, func() error { return nil }, time.Millisecond)
	if err == nil {
		t.Error("NewWatcher() should fail for a missing directory")
	}
}
