package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the configuration file for changes and publishes a fresh
// Snapshot to its subscribers on every write, debounced.
type Watcher struct {
	mu            sync.RWMutex
	path          string
	debounceDelay time.Duration
	callbacks     []func(old, new *Snapshot)
	current       *Snapshot
	logger        *slog.Logger

	fsw  *fsnotify.Watcher
	done chan struct{}
}

// NewWatcher creates a Watcher for the given config file path, seeded with
// the already-loaded initial snapshot.
func NewWatcher(path string, initial *Snapshot, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		path:          path,
		debounceDelay: 200 * time.Millisecond,
		current:       initial,
		logger:        logger,
		fsw:           fsw,
		done:          make(chan struct{}),
	}, nil
}

// OnChange registers a callback invoked after every successful reload.
func (w *Watcher) OnChange(cb func(old, new *Snapshot)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Current returns the watcher's current snapshot.
func (w *Watcher) Current() *Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start begins watching in the background. It returns once the watch loop
// goroutine has been spawned.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Close stops the watcher and releases the underlying fsnotify handle.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(w.debounceDelay, w.reload)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadFrom(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous snapshot", "path", w.path, "error", err)
		return
	}
	if err := Validate(cfg); err != nil {
		w.logger.Warn("config reload failed validation, keeping previous snapshot", "path", w.path, "error", err)
		return
	}

	next := SnapshotFrom(cfg)

	w.mu.Lock()
	prev := w.current
	w.current = next
	callbacks := make([]func(old, new *Snapshot), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("config reloaded", "path", w.path, "upstreams", len(next.Upstreams))
	for _, cb := range callbacks {
		cb(prev, next)
	}
}
