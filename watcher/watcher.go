// Package watcher implements the configuration watcher: it watches one
// settings file and calls back with freshly loaded settings on content
// change, confirmed by a SHA-256 comparison against the last processed
// content. Event-driven mode uses fsnotify, watching the file's parent
// directory and filtering by basename (not every platform supports
// watching a single file that may be replaced-by-rename). Polling is
// the fallback when the event-driven watcher cannot be created.
package watcher

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/opencuff/opencuff/config"
)

// OnChange is invoked with freshly parsed settings after a confirmed
// content change. Parse failures are logged by the watcher itself and
// never reach OnChange, preserving the previously live settings.
type OnChange func(*config.Settings)

const defaultPollInterval = 5 * time.Second

// Watcher watches path for content changes and reports them via
// OnChange. The zero value is not usable; construct with New.
type Watcher struct {
	path         string
	pollInterval time.Duration
	onChange     OnChange
	logger       *slog.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	lastHash string
}

// New constructs a Watcher for path. pollInterval <= 0 defaults to 5s.
func New(path string, pollInterval time.Duration, onChange OnChange, logger *slog.Logger) *Watcher {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: path, pollInterval: pollInterval, onChange: onChange, logger: logger}
}

// Start begins watching. Idempotent: a second Start on an already
// running watcher is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}

	w.lastHash = w.computeHash()

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("event-driven config watch unavailable, falling back to polling", "error", err)
		go w.pollLoop(ctx, w.done)
		return
	}

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		w.logger.Warn("failed to watch config directory, falling back to polling", "dir", dir, "error", err)
		fsw.Close()
		go w.pollLoop(ctx, w.done)
		return
	}

	go w.eventLoop(ctx, fsw, w.done)
}

// Stop cancels the watcher and waits for the worker to drain.
// Idempotent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	done := w.done
	w.running = false
	w.mu.Unlock()

	cancel()
	<-done
}

func (w *Watcher) eventLoop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	defer fsw.Close()

	base := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.checkAndFire()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.checkAndFire()
		}
	}
}

func (w *Watcher) checkAndFire() {
	newHash := w.computeHash()

	w.mu.Lock()
	changed := newHash != w.lastHash
	if changed {
		w.lastHash = newHash
	}
	w.mu.Unlock()

	if !changed {
		return
	}

	settings, err := config.Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous settings live", "path", w.path, "error", err)
		return
	}
	w.onChange(settings)
}

func (w *Watcher) computeHash() string {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return string(sum[:])
}
