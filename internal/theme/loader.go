package theme

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Loader resolves themes by name and tracks the active palette with
// hot-reload support.
type Loader struct {
	mu          sync.RWMutex
	logger      *slog.Logger
	themesDir   string
	currentName string
	theme       *Theme
	dark        bool
	watcher     *Watcher
	onChange    func(Palette)
}

// NewLoader creates a new theme loader using the user's themes directory.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}

	themesDir, err := ThemesDir()
	if err != nil {
		logger.Warn("failed to get themes directory", "error", err)
		themesDir = ""
	}

	return NewLoaderWithDir(themesDir, logger)
}

// NewLoaderWithDir creates a loader that looks for user themes in dir.
func NewLoaderWithDir(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		logger:    logger,
		themesDir: dir,
		theme:     NewDefaultTheme(),
		dark:      true,
	}
}

// LoadTheme loads a theme by name.
// Theme resolution order:
//  1. User themes directory (~/.config/retrotoast/themes/)
//  2. Embedded/bundled themes
//
// This allows users to override bundled themes by placing a file with the same name
// in their themes directory.
func (l *Loader) LoadTheme(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if name == "" {
		name = DefaultThemeName
	}

	// First, check user themes directory
	if l.themesDir != "" {
		themePath := filepath.Join(l.themesDir, name+".toml")
		if _, err := os.Stat(themePath); err == nil {
			theme, err := NewTheme(name, themePath)
			if err != nil {
				l.logger.Warn("failed to load user theme, trying bundled", "theme", name, "error", err)
			} else {
				l.currentName = name
				l.theme = theme
				l.logger.Info("loaded user theme", "name", name, "path", themePath)
				return nil
			}
		}
	}

	// Second, check embedded themes
	if data, found := GetEmbeddedTheme(name); found {
		theme, err := Parse(name, data)
		if err != nil {
			return err
		}
		theme.IsBundled = true
		l.theme = theme
		l.currentName = name
		l.logger.Debug("loaded bundled theme", "name", name)
		return nil
	}

	// Fallback to default theme
	l.logger.Warn("theme not found, using default", "theme", name)
	l.theme = NewDefaultTheme()
	l.currentName = DefaultThemeName
	return nil
}

// SetColorScheme picks the dark or light palette. "system" follows
// systemDark, which the platform adapter reports.
func (l *Loader) SetColorScheme(scheme string, systemDark bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch strings.ToLower(scheme) {
	case "light":
		l.dark = false
	case "dark":
		l.dark = true
	default:
		l.dark = systemDark
	}
}

// Palette returns the active palette.
func (l *Loader) Palette() Palette {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.theme.Palette(l.dark)
}

// GetTheme returns the currently loaded theme.
func (l *Loader) GetTheme() *Theme {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.theme
}

// SetChangeCallback sets the function called with the new palette after a
// hot-reload. It runs on the watcher goroutine.
func (l *Loader) SetChangeCallback(fn func(Palette)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

// Reload reloads the current theme from disk.
func (l *Loader) Reload() error {
	l.mu.RLock()
	name := l.currentName
	l.mu.RUnlock()
	return l.LoadTheme(name)
}

// StartHotReload starts watching the current theme for changes.
func (l *Loader) StartHotReload(ctx context.Context) {
	l.StopHotReload()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.theme == nil || l.theme.IsBundled {
		l.logger.Debug("not starting hot-reload for bundled theme")
		return
	}

	w := NewWatcher(l.theme, l.logger)
	w.SetChangeCallback(func(t *Theme) {
		l.mu.Lock()
		l.theme = t
		p := t.Palette(l.dark)
		cb := l.onChange
		name := l.currentName
		l.mu.Unlock()
		l.logger.Info("hot-reloaded theme", "name", name)
		if cb != nil {
			cb(p)
		}
	})

	if err := w.Start(ctx); err != nil {
		l.logger.Warn("failed to start theme watcher", "error", err)
		return
	}
	l.watcher = w
}

// StopHotReload stops watching the theme for changes.
func (l *Loader) StopHotReload() {
	l.mu.Lock()
	w := l.watcher
	l.watcher = nil
	l.mu.Unlock()

	if w != nil {
		w.Stop()
	}
}

// CurrentTheme returns the name of the currently loaded theme.
func (l *Loader) CurrentTheme() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.currentName
}

// ListThemes returns the names of bundled themes and those in the
// loader's themes directory.
func (l *Loader) ListThemes() []string {
	infos, err := ListThemesIn(l.themesDir)
	if err != nil {
		l.logger.Debug("failed to list user themes", "error", err)
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names
}
