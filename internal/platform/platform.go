// Package platform defines the windowing capabilities the display manager
// needs from a host: borderless topmost windows, timers, and an event loop
// that delivers input for those windows on a single goroutine.
package platform

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/jmylchreest/retrotoast/internal/render"
)

// ErrUnavailable is returned by adapters that cannot create windows or
// timers, for example because no event loop is running.
var ErrUnavailable = errors.New("platform unavailable")

// Handle identifies a live platform window. Handles are never reused while
// the window they named is alive.
type Handle uint64

func (h Handle) String() string {
	return fmt.Sprintf("0x%x", uint64(h))
}

// Rect is a screen rectangle in pixels.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Image converts to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Overlaps reports whether r and o share any pixel.
func (r Rect) Overlaps(o Rect) bool {
	return r.Image().Overlaps(o.Image())
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Style describes how a toast window should be created.
type Style struct {
	Title       string // Accessibility name; never shown as a caption
	Transparent bool   // Per-pixel alpha is needed for the shadow padding
}

// EventKind is the type of an event delivered for a window.
type EventKind int

const (
	EventMouseMove EventKind = iota
	EventMouseLeave
	EventMouseDown
	EventPaint
	EventTimerTick
	EventDestroyRequested
)

func (k EventKind) String() string {
	switch k {
	case EventMouseMove:
		return "mouse-move"
	case EventMouseLeave:
		return "mouse-leave"
	case EventMouseDown:
		return "mouse-down"
	case EventPaint:
		return "paint"
	case EventTimerTick:
		return "timer-tick"
	case EventDestroyRequested:
		return "destroy-requested"
	default:
		return "unknown"
	}
}

// Event is one input or system event for a window. X and Y are
// window-local pixel coordinates for mouse events.
type Event struct {
	Kind EventKind
	X, Y int
}

// EventHandler receives events on the adapter's loop goroutine.
type EventHandler func(Handle, Event)

// Adapter is a windowing host. Every method except Post must be called
// from the goroutine running Run (or, before Run starts, from the goroutine
// that will call it). Events are delivered on that same goroutine, in order.
type Adapter interface {
	CreateWindow(rect Rect, style Style) (Handle, error)
	DestroyWindow(h Handle) error
	MoveWindow(h Handle, rect Rect) error
	// Invalidate requests a Paint event. Requests are coalesced and the
	// Paint is delivered after the current event handler returns.
	Invalidate(h Handle)
	Draw(h Handle, frame *render.Frame) error
	// SetTimer starts or replaces a repeating timer delivering TimerTick.
	SetTimer(h Handle, interval time.Duration) error
	CancelTimer(h Handle)
	CompositorEnabled() bool
	// ScreenGeometry returns the work area of the primary screen.
	ScreenGeometry() Rect
	SetEventHandler(fn EventHandler)
	// Post schedules fn on the loop goroutine. It is safe to call from any
	// goroutine and returns false once the loop has exited.
	Post(fn func()) bool
	// Run owns the calling goroutine until ctx is cancelled or the host
	// asks to quit.
	Run(ctx context.Context) error
}

// DarkModeReporter is implemented by adapters that know the desktop's
// colour scheme preference.
type DarkModeReporter interface {
	PrefersDark() bool
}

// PrefersDark returns the adapter's colour scheme preference, defaulting
// to dark when the adapter cannot tell.
func PrefersDark(a Adapter) bool {
	if r, ok := a.(DarkModeReporter); ok {
		return r.PrefersDark()
	}
	return true
}
