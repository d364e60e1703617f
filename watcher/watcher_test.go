package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/opencuff/opencuff/config"
)

func TestWatcherFiresOnContentChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yml")
	if err := os.WriteFile(path, []byte("version: \"1\"\nplugins: {}\n"), 0o644); err != nil {
		t.Fatalf("writing settings: %v", err)
	}

	var mu sync.Mutex
	var received *config.Settings
	fired := make(chan struct{}, 1)

	w := New(path, 20*time.Millisecond, func(s *config.Settings) {
		mu.Lock()
		received = s
		mu.Unlock()
		select {
		case fired <- struct{}{}:
		default:
		}
	}, nil)
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(path, []byte("version: \"1\"\nplugins:\n  dummy:\n    type: in_source\n    module: opencuff.plugins.builtin.dummy\n"), 0o644); err != nil {
		t.Fatalf("rewriting settings: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatalf("watcher never fired on content change")
	}

	mu.Lock()
	defer mu.Unlock()
	if received == nil || len(received.Plugins) != 1 {
		t.Fatalf("expected one plugin in fired settings, got %+v", received)
	}
}

func TestWatcherDoesNotFireOnTouchWithoutContentChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yml")
	content := []byte("version: \"1\"\nplugins: {}\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing settings: %v", err)
	}

	calls := 0
	var mu sync.Mutex
	w := New(path, 10*time.Millisecond, func(s *config.Settings) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, nil)
	w.Start()
	defer w.Stop()

	// Rewrite with identical content; the hash should not change.
	time.Sleep(30 * time.Millisecond)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("rewriting settings: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Fatalf("expected no callback for identical content, got %d calls", calls)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yml")
	os.WriteFile(path, []byte("plugins: {}\n"), 0o644)

	w := New(path, time.Hour, func(s *config.Settings) {}, nil)
	w.Start()
	w.Start()
	w.Stop()
	w.Stop()
}
