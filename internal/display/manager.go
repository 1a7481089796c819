package display

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jmylchreest/retrotoast/internal/config"
	"github.com/jmylchreest/retrotoast/internal/model"
	"github.com/jmylchreest/retrotoast/internal/platform"
	"github.com/jmylchreest/retrotoast/internal/render"
	"github.com/jmylchreest/retrotoast/internal/theme"
)

// CloseCallback is called after a toast has been torn down.
type CloseCallback func(id model.ID, reason model.CloseReason)

// DegradedCallback is called when a toast had to be drawn with a fallback.
type DegradedCallback func(id model.ID, err error)

// SoundPlayer plays the notification sound. Play must not block.
// An empty path means the configured default sound.
type SoundPlayer interface {
	Play(path string)
}

// Manager owns every live toast. Toasts are kept in an arena keyed by ID
// plus an insertion-ordered stack (oldest first); the newest toast sits at
// the anchor and older ones are pushed away from it.
type Manager struct {
	adapter platform.Adapter
	config  *config.Config
	logger  *slog.Logger
	layout  *LayoutManager
	palette theme.Palette
	sound   SoundPlayer

	toasts  map[model.ID]*Toast
	handles map[platform.Handle]model.ID
	stack   []model.ID

	onClose    CloseCallback
	onDegraded DegradedCallback

	// Close callbacks are queued while a Submit or reload is half done
	// and delivered in order once the stack is consistent again.
	closedQueue []closeEvent
	deferClose  int
	flushing    bool

	now func() time.Time
}

// NewManager creates a display manager and registers it as the adapter's
// event handler.
func NewManager(adapter platform.Adapter, cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	m := &Manager{
		adapter: adapter,
		config:  cfg,
		logger:  logger,
		layout:  NewLayoutManager(cfg, logger),
		palette: theme.NewDefaultTheme().Palette(true),
		toasts:  make(map[model.ID]*Toast),
		handles: make(map[platform.Handle]model.ID),
		now:     time.Now,
	}
	adapter.SetEventHandler(m.HandleEvent)
	return m
}

type closeEvent struct {
	id     model.ID
	reason model.CloseReason
}

// SetCloseCallback sets the callback for toast close events.
func (m *Manager) SetCloseCallback(cb CloseCallback) {
	m.onClose = cb
}

// SetDegradedCallback sets the callback for degraded renders.
func (m *Manager) SetDegradedCallback(cb DegradedCallback) {
	m.onDegraded = cb
}

// SetSoundPlayer sets the player used for new toasts. Nil disables sound.
func (m *Manager) SetSoundPlayer(p SoundPlayer) {
	m.sound = p
}

// SetPalette changes the colours and repaints every toast.
func (m *Manager) SetPalette(p theme.Palette) {
	m.palette = p
	for _, id := range slices.Clone(m.stack) {
		if t, ok := m.toasts[id]; ok {
			m.adapter.Invalidate(t.Handle)
		}
	}
}

func (m *Manager) renderLayout(compositor bool) render.Layout {
	d := m.config.Display
	return render.Layout{
		Width:    d.Width,
		Height:   d.Height,
		Margin:   d.Margin,
		IconSize: d.IconSize,
		Padding:  m.config.ShadowPadding(compositor),
	}
}

// Submit shows a new toast at the anchor and shifts existing toasts away
// from it. Either the toast is fully shown or nothing changes: when the
// platform refuses the window or timer the error wraps
// ErrPlatformUnavailable and no state is left behind.
func (m *Manager) Submit(n model.Notification) (model.ID, error) {
	id, err := model.NewID()
	if err != nil {
		return "", &DisplayError{Message: "failed to allocate toast id", Cause: err}
	}
	n = n.Clone()

	compositor := m.adapter.CompositorEnabled()
	screen := m.adapter.ScreenGeometry()
	layout := m.renderLayout(compositor)
	rect := m.layout.CalculatePosition(0, screen, layout.Size())

	t := &Toast{
		ID:           id,
		Notification: n,
		Rect:         rect,
		CreatedAt:    m.now(),
		Lifetime:     n.Timeout.Resolve(m.config.Timeouts.Default.Duration()),
		State:        model.StateCreated,
		layout:       layout,
		compositor:   compositor,
	}
	t.Remaining = t.Lifetime

	h, err := m.adapter.CreateWindow(rect, platform.Style{Title: n.AppName, Transparent: layout.Padding > 0})
	if err != nil {
		return "", m.unavailable("failed to create toast window", err)
	}
	t.Handle = h

	if t.Expires() {
		if err := m.adapter.SetTimer(h, m.config.Timeouts.Tick.Duration()); err != nil {
			m.abandon(h)
			return "", m.unavailable("failed to start toast timer", err)
		}
	}

	frame, rerr := render.Render(layout, m.content(t), t.Hover, m.renderOptions(t))
	if err := m.adapter.Draw(h, frame); err != nil {
		if t.Expires() {
			m.adapter.CancelTimer(h)
		}
		m.abandon(h)
		return "", m.unavailable("failed to draw toast", err)
	}

	m.deferClose++
	m.toasts[id] = t
	m.handles[h] = id
	m.stack = append(m.stack, id)
	t.transition(model.StateVisible, m.logger)

	// The new toast is newest, so evicting from the front never reaches it.
	for capacity := m.layout.Capacity(screen, layout.Size()); len(m.stack) > capacity; {
		oldest := m.toasts[m.stack[0]]
		m.logger.Debug("evicting oldest toast", "id", oldest.ID, "capacity", capacity)
		m.retire(oldest, model.ReasonEvicted)
	}
	m.updatePositions()
	m.deferClose--

	if rerr != nil {
		m.reportDegraded(t, rerr)
	}

	if !n.Silent && m.sound != nil {
		m.sound.Play(n.SoundFile)
	}

	m.logger.Debug("showed toast",
		"id", id,
		"handle", h,
		"lifetime", t.Lifetime,
		"active", len(m.stack),
	)

	m.flushClosed()
	return id, nil
}

func (m *Manager) unavailable(msg string, cause error) error {
	return &DisplayError{Message: msg, Cause: fmt.Errorf("%w: %w", ErrPlatformUnavailable, cause)}
}

// abandon destroys a window that never made it into the stack.
func (m *Manager) abandon(h platform.Handle) {
	if err := m.adapter.DestroyWindow(h); err != nil {
		m.logger.Warn("failed to destroy abandoned window", "handle", h, "error", err)
	}
}

// HandleEvent routes a platform event to the toast that owns h. Events for
// windows that are already gone are expected and ignored.
func (m *Manager) HandleEvent(h platform.Handle, ev platform.Event) {
	id, ok := m.handles[h]
	if !ok {
		m.logger.Debug("ignoring event for unknown window", "handle", h, "event", ev.Kind)
		return
	}
	t := m.toasts[id]
	if t == nil || !t.State.Live() || t.State == model.StateClosing {
		return
	}

	switch ev.Kind {
	case platform.EventMouseMove:
		m.setHover(t, t.layout.HitTest(ev.X, ev.Y))

	case platform.EventMouseLeave:
		m.setHover(t, model.HoverNone)

	case platform.EventMouseDown:
		hover := t.layout.HitTest(ev.X, ev.Y)
		switch hover {
		case model.HoverClose:
			m.retire(t, model.ReasonDismissed)
		case model.HoverBody:
			if config.MouseAction(m.config.Mouse.BodyClick) == config.MouseActionDismiss {
				m.retire(t, model.ReasonDismissed)
				return
			}
			m.setHover(t, hover)
		}

	case platform.EventPaint:
		m.paint(t)

	case platform.EventTimerTick:
		m.tick(t)

	case platform.EventDestroyRequested:
		m.retire(t, model.ReasonCancelled)
	}
}

// setHover updates hover state and asks for a repaint only on change.
func (m *Manager) setHover(t *Toast, hover model.Hover) {
	if t.Hover == hover {
		return
	}
	t.Hover = hover
	if hover == model.HoverNone {
		t.transition(model.StateVisible, m.logger)
	} else {
		t.transition(model.StateHovering, m.logger)
	}
	m.adapter.Invalidate(t.Handle)
}

func (m *Manager) tick(t *Toast) {
	if !t.Expires() {
		return
	}
	if t.State == model.StateHovering && m.config.Behavior.PauseOnHover {
		return
	}
	t.Remaining -= m.config.Timeouts.Tick.Duration()
	if t.Remaining <= 0 {
		t.Remaining = 0
		m.retire(t, model.ReasonExpired)
	}
}

func (m *Manager) content(t *Toast) render.Content {
	return render.ContentFrom(t.Notification, t.CreatedAt)
}

func (m *Manager) renderOptions(t *Toast) render.Options {
	return render.Options{
		Palette: m.palette,
		Shadow:  t.layout.Padding > 0,
		Now:     m.now(),
	}
}

func (m *Manager) paint(t *Toast) {
	frame, err := render.Render(t.layout, m.content(t), t.Hover, m.renderOptions(t))
	if err != nil {
		m.reportDegraded(t, err)
	}
	if derr := m.adapter.Draw(t.Handle, frame); derr != nil {
		m.logger.Warn("failed to draw toast", "id", t.ID, "handle", t.Handle, "error", derr)
	}
}

// reportDegraded logs and reports a degraded render once per toast.
func (m *Manager) reportDegraded(t *Toast, err error) {
	if t.Degraded != nil {
		return
	}
	t.Degraded = err
	m.logger.Warn("toast rendered with fallback", "id", t.ID, "error", err)
	if m.onDegraded != nil {
		m.onDegraded(t.ID, err)
	}
}

// Retire tears down the toast with the given ID. It is safe to call any
// number of times and from inside event handlers; it reports whether the
// toast was still live.
func (m *Manager) Retire(id model.ID) bool {
	t, ok := m.toasts[id]
	if !ok {
		return false
	}
	m.retire(t, model.ReasonCancelled)
	return true
}

// retire is the single teardown path. The timer and window are released
// before the toast leaves the arena, and positions are recomputed over a
// snapshot of the remaining stack.
func (m *Manager) retire(t *Toast, reason model.CloseReason) {
	if t.State == model.StateClosing || t.State == model.StateDestroyed {
		return
	}
	t.transition(model.StateClosing, m.logger)

	if t.Expires() {
		m.adapter.CancelTimer(t.Handle)
	}
	if err := m.adapter.DestroyWindow(t.Handle); err != nil {
		m.logger.Warn("failed to destroy toast window", "id", t.ID, "handle", t.Handle, "error", err)
	}

	delete(m.handles, t.Handle)
	delete(m.toasts, t.ID)
	m.stack = slices.DeleteFunc(m.stack, func(id model.ID) bool { return id == t.ID })

	m.updatePositions()
	t.transition(model.StateDestroyed, m.logger)

	m.logger.Debug("retired toast", "id", t.ID, "handle", t.Handle, "reason", reason)

	m.closedQueue = append(m.closedQueue, closeEvent{id: t.ID, reason: reason})
	m.flushClosed()
}

// flushClosed delivers queued close callbacks. A callback that retires
// or submits toasts only queues more events; the outermost flush
// delivers them, so nested callbacks never recurse.
func (m *Manager) flushClosed() {
	if m.deferClose > 0 || m.flushing {
		return
	}
	m.flushing = true
	defer func() { m.flushing = false }()

	for len(m.closedQueue) > 0 {
		ev := m.closedQueue[0]
		m.closedQueue = m.closedQueue[1:]
		if m.onClose != nil {
			m.onClose(ev.id, ev.reason)
		}
	}
}

// CloseAll retires every toast, oldest first. Call it when the host loop exits.
func (m *Manager) CloseAll() {
	for _, id := range slices.Clone(m.stack) {
		if t, ok := m.toasts[id]; ok {
			m.retire(t, model.ReasonShutdown)
		}
	}
}

// updatePositions moves every toast to the slot its stack index implies.
func (m *Manager) updatePositions() {
	screen := m.adapter.ScreenGeometry()
	snapshot := slices.Clone(m.stack)

	for k, id := range snapshot {
		t, ok := m.toasts[id]
		if !ok {
			continue
		}
		rect := m.layout.CalculatePosition(len(snapshot)-1-k, screen, t.layout.Size())
		if rect == t.Rect {
			continue
		}
		if err := m.adapter.MoveWindow(t.Handle, rect); err != nil {
			m.logger.Warn("failed to move toast", "id", id, "handle", t.Handle, "error", err)
			continue
		}
		t.Rect = rect
	}
}

// UpdateConfig applies a reloaded configuration: geometry, timers and
// stacking limits take effect for existing toasts immediately.
func (m *Manager) UpdateConfig(cfg *config.Config) {
	old := m.config
	m.config = cfg
	m.layout.UpdateConfig(cfg)

	tickChanged := old.Timeouts.Tick != cfg.Timeouts.Tick
	for _, id := range slices.Clone(m.stack) {
		t, ok := m.toasts[id]
		if !ok {
			continue
		}
		t.layout = m.renderLayout(t.compositor)
		if tickChanged && t.Expires() {
			if err := m.adapter.SetTimer(t.Handle, cfg.Timeouts.Tick.Duration()); err != nil {
				m.logger.Warn("failed to restart toast timer", "id", id, "error", err)
			}
		}
		m.adapter.Invalidate(t.Handle)
	}

	m.deferClose++
	if len(m.stack) > 0 {
		screen := m.adapter.ScreenGeometry()
		newest := m.toasts[m.stack[len(m.stack)-1]]
		for capacity := m.layout.Capacity(screen, newest.layout.Size()); len(m.stack) > capacity; {
			m.retire(m.toasts[m.stack[0]], model.ReasonEvicted)
		}
	}

	m.updatePositions()
	m.deferClose--

	m.logger.Debug("display manager config updated",
		"old_max_visible", old.Display.MaxVisible,
		"new_max_visible", cfg.Display.MaxVisible,
		"position", cfg.Display.Position,
	)
	m.flushClosed()
}

// Stack returns toast IDs oldest first. The last element is at the anchor.
func (m *Manager) Stack() []model.ID {
	return slices.Clone(m.stack)
}

// Get returns a copy of the toast's current state.
func (m *Manager) Get(id model.ID) (Toast, bool) {
	t, ok := m.toasts[id]
	if !ok {
		return Toast{}, false
	}
	return *t, true
}

// Lookup finds the toast owning a platform handle.
func (m *Manager) Lookup(h platform.Handle) (model.ID, bool) {
	id, ok := m.handles[h]
	return id, ok
}

// ActiveCount returns the number of live toasts.
func (m *Manager) ActiveCount() int {
	return len(m.stack)
}

// IsPlatformUnavailable reports whether err came from a refused window or timer.
func IsPlatformUnavailable(err error) bool {
	return errors.Is(err, ErrPlatformUnavailable)
}
