package theme

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a theme file for changes and triggers hot-reload.
// It watches the parent directory so editors that replace the file on save
// are still picked up.
type Watcher struct {
	mu     sync.Mutex
	logger *slog.Logger
	theme  *Theme

	// Coalesces the burst of events a single save produces
	debounce time.Duration

	onChange func(*Theme)

	fsw     *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher creates a new theme watcher.
func NewWatcher(theme *Theme, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		logger:   logger,
		theme:    theme,
		debounce: 100 * time.Millisecond,
	}
}

// SetDebounce sets how long to wait after the last event before reloading.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// SetChangeCallback sets the callback to invoke when the theme changes.
func (w *Watcher) SetChangeCallback(callback func(*Theme)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = callback
}

// Start begins watching the theme file for changes.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	if w.theme == nil || w.theme.IsBundled {
		w.logger.Debug("not watching bundled theme")
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create theme watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.theme.Path)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.theme.Path), err)
	}

	w.fsw = fsw
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	go w.watchLoop(ctx, fsw, w.stopCh, w.doneCh)

	w.logger.Debug("theme watcher started", "path", w.theme.Path)
	return nil
}

// Stop stops watching the theme file.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	<-done
	w.logger.Debug("theme watcher stopped")
}

// IsRunning returns whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) watchLoop(ctx context.Context, fsw *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	defer fsw.Close()

	w.mu.Lock()
	target := filepath.Clean(w.theme.Path)
	debounce := w.debounce
	w.mu.Unlock()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("theme watcher error", "error", err)
		case <-fire:
			fire = nil
			w.checkForChanges()
		}
	}
}

func (w *Watcher) checkForChanges() {
	w.mu.Lock()
	theme := w.theme
	callback := w.onChange
	w.mu.Unlock()

	fresh, changed, err := theme.Reload()
	if err != nil {
		w.logger.Warn("failed to reload theme", "path", theme.Path, "error", err)
		return
	}

	w.mu.Lock()
	w.theme = fresh
	w.mu.Unlock()

	if changed {
		w.logger.Info("theme file changed, reloading", "path", theme.Path)
		if callback != nil {
			callback(fresh)
		}
	}
}
