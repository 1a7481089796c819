// Package headless is an in-memory platform adapter. It records every
// call, delivers events only when told to, and never touches a display,
// which makes it the adapter for tests, CI and the "serve" dry-run mode.
package headless

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jmylchreest/retrotoast/internal/platform"
	"github.com/jmylchreest/retrotoast/internal/render"
)

// Window is the recorded state of one window.
type Window struct {
	Handle      platform.Handle
	Rect        platform.Rect
	Style       platform.Style
	Frame       *render.Frame
	Draws       int
	Invalidates int
	Timer       time.Duration // Zero when no timer is running
	Destroyed   bool
}

// Call is one recorded adapter call.
type Call struct {
	Op     string
	Handle platform.Handle
	Rect   platform.Rect
}

// Adapter is the headless platform.
type Adapter struct {
	Screen     platform.Rect
	Compositor bool
	Dark       bool

	// Refuse makes CreateWindow fail; RefuseTimer makes SetTimer fail.
	Refuse      bool
	RefuseTimer bool

	// RealTime fires timers from wall-clock tickers through Post instead
	// of waiting for Tick.
	RealTime bool
	tickers  map[platform.Handle]chan struct{}

	logger  *slog.Logger
	handler platform.EventHandler
	next    platform.Handle
	windows map[platform.Handle]*Window
	calls   []Call

	depth   int
	pending []platform.Handle

	mu     sync.Mutex
	posted []func()
	wake   chan struct{}
	closed bool
}

// New creates a headless adapter with a 1920x1080 work area and a compositor.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		Screen:     platform.Rect{Width: 1920, Height: 1080},
		Compositor: true,
		Dark:       true,
		logger:     logger,
		next:       0x100,
		windows:    make(map[platform.Handle]*Window),
		tickers:    make(map[platform.Handle]chan struct{}),
		wake:       make(chan struct{}, 1),
	}
}

func (a *Adapter) record(op string, h platform.Handle, r platform.Rect) {
	a.calls = append(a.calls, Call{Op: op, Handle: h, Rect: r})
}

func (a *Adapter) live(h platform.Handle) (*Window, error) {
	w, ok := a.windows[h]
	if !ok || w.Destroyed {
		return nil, fmt.Errorf("window %s: %w", h, platform.ErrUnavailable)
	}
	return w, nil
}

// CreateWindow implements platform.Adapter.
func (a *Adapter) CreateWindow(rect platform.Rect, style platform.Style) (platform.Handle, error) {
	if a.Refuse {
		return 0, fmt.Errorf("create window refused: %w", platform.ErrUnavailable)
	}
	a.next++
	h := a.next
	a.windows[h] = &Window{Handle: h, Rect: rect, Style: style}
	a.record("create", h, rect)
	return h, nil
}

// DestroyWindow implements platform.Adapter.
func (a *Adapter) DestroyWindow(h platform.Handle) error {
	w, err := a.live(h)
	a.record("destroy", h, platform.Rect{})
	if err != nil {
		return err
	}
	w.Destroyed = true
	w.Timer = 0
	a.stopTicker(h)
	a.pending = slices.DeleteFunc(a.pending, func(p platform.Handle) bool { return p == h })
	return nil
}

// MoveWindow implements platform.Adapter.
func (a *Adapter) MoveWindow(h platform.Handle, rect platform.Rect) error {
	w, err := a.live(h)
	if err != nil {
		return err
	}
	w.Rect = rect
	a.record("move", h, rect)
	return nil
}

// Invalidate implements platform.Adapter. The Paint is delivered when the
// outermost Deliver returns, or by Flush.
func (a *Adapter) Invalidate(h platform.Handle) {
	w, err := a.live(h)
	if err != nil {
		return
	}
	w.Invalidates++
	a.record("invalidate", h, platform.Rect{})
	if !slices.Contains(a.pending, h) {
		a.pending = append(a.pending, h)
	}
}

// Draw implements platform.Adapter.
func (a *Adapter) Draw(h platform.Handle, frame *render.Frame) error {
	w, err := a.live(h)
	if err != nil {
		return err
	}
	w.Frame = frame
	w.Draws++
	a.record("draw", h, platform.Rect{})
	return nil
}

// SetTimer implements platform.Adapter.
func (a *Adapter) SetTimer(h platform.Handle, interval time.Duration) error {
	if a.RefuseTimer {
		return fmt.Errorf("set timer refused: %w", platform.ErrUnavailable)
	}
	w, err := a.live(h)
	if err != nil {
		return err
	}
	w.Timer = interval
	a.record("set-timer", h, platform.Rect{})
	if a.RealTime {
		a.startTicker(h, interval)
	}
	return nil
}

func (a *Adapter) startTicker(h platform.Handle, interval time.Duration) {
	a.stopTicker(h)
	stop := make(chan struct{})
	a.tickers[h] = stop
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				ok := a.Post(func() {
					if w, live := a.windows[h]; live && !w.Destroyed && w.Timer != 0 {
						a.Deliver(h, platform.Event{Kind: platform.EventTimerTick})
					}
				})
				if !ok {
					return
				}
			}
		}
	}()
}

func (a *Adapter) stopTicker(h platform.Handle) {
	if stop, ok := a.tickers[h]; ok {
		close(stop)
		delete(a.tickers, h)
	}
}

// CancelTimer implements platform.Adapter.
func (a *Adapter) CancelTimer(h platform.Handle) {
	if w, ok := a.windows[h]; ok {
		w.Timer = 0
	}
	a.stopTicker(h)
	a.record("cancel-timer", h, platform.Rect{})
}

// CompositorEnabled implements platform.Adapter.
func (a *Adapter) CompositorEnabled() bool { return a.Compositor }

// ScreenGeometry implements platform.Adapter.
func (a *Adapter) ScreenGeometry() platform.Rect { return a.Screen }

// PrefersDark implements platform.DarkModeReporter.
func (a *Adapter) PrefersDark() bool { return a.Dark }

// SetEventHandler implements platform.Adapter.
func (a *Adapter) SetEventHandler(fn platform.EventHandler) { a.handler = fn }

// Deliver dispatches ev to the handler as the host loop would, then
// delivers coalesced Paint events once the outermost dispatch returns.
// Events for destroyed or unknown windows are delivered too: a real loop
// can have them queued.
func (a *Adapter) Deliver(h platform.Handle, ev platform.Event) {
	if a.handler == nil {
		return
	}
	a.depth++
	a.handler(h, ev)
	a.depth--
	if a.depth == 0 {
		a.Flush()
	}
}

// Flush delivers pending Paint events.
func (a *Adapter) Flush() {
	for len(a.pending) > 0 {
		h := a.pending[0]
		a.pending = a.pending[1:]
		if a.handler != nil {
			a.depth++
			a.handler(h, platform.Event{Kind: platform.EventPaint})
			a.depth--
		}
	}
}

// Tick delivers n timer ticks to h, stopping early if its timer goes away.
func (a *Adapter) Tick(h platform.Handle, n int) {
	for range n {
		w, ok := a.windows[h]
		if !ok || w.Destroyed || w.Timer == 0 {
			return
		}
		a.Deliver(h, platform.Event{Kind: platform.EventTimerTick})
	}
}

// Move delivers a MouseMove at window-local (x, y).
func (a *Adapter) Move(h platform.Handle, x, y int) {
	a.Deliver(h, platform.Event{Kind: platform.EventMouseMove, X: x, Y: y})
}

// Click delivers a MouseDown at window-local (x, y).
func (a *Adapter) Click(h platform.Handle, x, y int) {
	a.Deliver(h, platform.Event{Kind: platform.EventMouseDown, X: x, Y: y})
}

// Window returns the recorded state of h.
func (a *Adapter) Window(h platform.Handle) (*Window, bool) {
	w, ok := a.windows[h]
	return w, ok
}

// Live returns the handles of windows that have not been destroyed,
// in creation order.
func (a *Adapter) Live() []platform.Handle {
	var out []platform.Handle
	for h, w := range a.windows {
		if !w.Destroyed {
			out = append(out, h)
		}
	}
	slices.Sort(out)
	return out
}

// Calls returns the recorded calls, optionally filtered by op.
func (a *Adapter) Calls(op string) []Call {
	if op == "" {
		return slices.Clone(a.calls)
	}
	var out []Call
	for _, c := range a.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// CountCalls counts calls of op for h.
func (a *Adapter) CountCalls(op string, h platform.Handle) int {
	n := 0
	for _, c := range a.calls {
		if c.Op == op && c.Handle == h {
			n++
		}
	}
	return n
}

// Post implements platform.Adapter.
func (a *Adapter) Post(fn func()) bool {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return false
	}
	a.posted = append(a.posted, fn)
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
	return true
}

// Drain runs posted functions on the calling goroutine until none remain.
func (a *Adapter) Drain() int {
	n := 0
	for {
		a.mu.Lock()
		fns := a.posted
		a.posted = nil
		a.mu.Unlock()
		if len(fns) == 0 {
			return n
		}
		for _, fn := range fns {
			a.depth++
			fn()
			a.depth--
			n++
		}
		if a.depth == 0 {
			a.Flush()
		}
	}
}

// Run implements platform.Adapter: it runs posted functions until ctx is done.
func (a *Adapter) Run(ctx context.Context) error {
	a.logger.Debug("headless loop started")
	defer func() {
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()
		for h := range a.tickers {
			a.stopTicker(h)
		}
		a.Drain()
		a.logger.Debug("headless loop stopped")
	}()

	for {
		a.Drain()
		select {
		case <-ctx.Done():
			return nil
		case <-a.wake:
		}
	}
}
