package daemon

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/retrotoast/internal/model"
)

// internalAppName labels toasts retrotoast raises about itself.
const internalAppName = "retrotoast"

// InternalNotifier raises toasts about retrotoast's own events, such as a
// config reload. Repeats of the same key within minInterval are dropped.
type InternalNotifier struct {
	mu     sync.Mutex
	logger *slog.Logger

	notifyHandler func(n model.Notification)

	lastNotifyTime map[string]time.Time
	minInterval    time.Duration
	now            func() time.Time

	enabled bool
}

// NewInternalNotifier creates a new InternalNotifier.
func NewInternalNotifier(logger *slog.Logger) *InternalNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &InternalNotifier{
		logger:         logger,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    5 * time.Second,
		now:            time.Now,
		enabled:        true,
	}
}

// SetNotifyHandler sets the function that shows a notification.
func (n *InternalNotifier) SetNotifyHandler(handler func(model.Notification)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifyHandler = handler
}

// SetEnabled enables or disables internal notifications.
func (n *InternalNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetMinInterval sets the minimum interval between duplicate notifications.
func (n *InternalNotifier) SetMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minInterval = interval
}

// Notify shows an internal notification unless the same key fired recently.
// Internal notifications are silent and expire after the configured default.
func (n *InternalNotifier) Notify(key, title, body string) {
	n.mu.Lock()
	if !n.enabled {
		n.mu.Unlock()
		return
	}
	handler := n.notifyHandler
	if handler == nil {
		n.mu.Unlock()
		n.logger.Debug("internal notification skipped: no handler", "title", title)
		return
	}

	now := n.now()
	if last, ok := n.lastNotifyTime[key]; ok && now.Sub(last) < n.minInterval {
		n.mu.Unlock()
		n.logger.Debug("internal notification rate-limited", "key", key, "title", title)
		return
	}
	n.lastNotifyTime[key] = now
	n.mu.Unlock()

	n.logger.Debug("sending internal notification", "key", key, "title", title)
	handler(model.Notification{
		AppName: internalAppName,
		Title:   title,
		Body:    body,
		Silent:  true,
		Timeout: model.TimeoutDefault,
	})
}

// NotifyConfigReloaded reports a successful config reload.
func (n *InternalNotifier) NotifyConfigReloaded() {
	n.Notify("config-reload", "Configuration Reloaded", "retrotoast configuration has been successfully reloaded.")
}

// NotifyConfigError reports a config file that failed validation.
func (n *InternalNotifier) NotifyConfigError(err error) {
	n.Notify("config-error", "Configuration Error", "Failed to reload configuration: "+err.Error())
}

// NotifyThemeReloaded reports a reloaded theme.
func (n *InternalNotifier) NotifyThemeReloaded(themeName string) {
	n.Notify("theme-reload", "Theme Reloaded", "Theme '"+themeName+"' has been reloaded.")
}

// NotifyThemeError reports a theme that could not be loaded.
func (n *InternalNotifier) NotifyThemeError(err error) {
	n.Notify("theme-error", "Theme Error", "Failed to load theme: "+err.Error())
}
