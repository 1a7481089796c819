//go:build linux && cgo

package gtk

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
	"unsafe"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	layershell "github.com/diamondburned/gotk4-layer-shell/pkg/gtk4layershell"
	"github.com/diamondburned/gotk4/pkg/cairo"
	coreglib "github.com/diamondburned/gotk4/pkg/core/glib"
	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/jmylchreest/retrotoast/internal/platform"
	"github.com/jmylchreest/retrotoast/internal/render"
)

const (
	namespace = "retrotoast-notification"
	cssClass  = "retrotoast"
)

// Transparent windows let the shadow padding show the desktop.
const transparentCSS = `window.retrotoast, window.retrotoast > * { background: transparent; }`

type window struct {
	win     *gtk.Window
	area    *gtk.DrawingArea
	rect    platform.Rect
	surface *cairo.Surface
	timer   glib.SourceHandle
}

// Adapter hosts toasts as GTK4 layer-shell surfaces on the overlay layer.
// Windows are positioned with layer-shell margins from the top-left of the
// monitor, so a compositor implementing wlr-layer-shell is required.
type Adapter struct {
	logger  *slog.Logger
	handler platform.EventHandler
	display *gdk.Display
	loop    *glib.MainLoop

	next    platform.Handle
	windows map[platform.Handle]*window

	pending []platform.Handle

	mu     sync.Mutex
	closed bool
}

// New initialises GTK and libadwaita. It fails with platform.ErrUnavailable
// when there is no display or the compositor lacks layer-shell.
func New(logger *slog.Logger) (*Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if !gtk.InitCheck() {
		return nil, fmt.Errorf("gtk init failed: %w", platform.ErrUnavailable)
	}
	adw.Init()

	if !layershell.IsSupported() {
		return nil, fmt.Errorf("compositor does not support layer-shell: %w", platform.ErrUnavailable)
	}

	display := gdk.DisplayGetDefault()
	if display == nil {
		return nil, fmt.Errorf("no display available: %w", platform.ErrUnavailable)
	}

	provider := gtk.NewCSSProvider()
	provider.LoadFromString(transparentCSS)
	gtk.StyleContextAddProviderForDisplay(display, provider, gtk.STYLE_PROVIDER_PRIORITY_APPLICATION)

	return &Adapter{
		logger:  logger,
		display: display,
		loop:    glib.NewMainLoop(nil, false),
		next:    0x1000,
		windows: make(map[platform.Handle]*window),
	}, nil
}

func (a *Adapter) live(h platform.Handle) (*window, error) {
	w, ok := a.windows[h]
	if !ok {
		return nil, fmt.Errorf("window %s: %w", h, platform.ErrUnavailable)
	}
	return w, nil
}

// CreateWindow implements platform.Adapter.
func (a *Adapter) CreateWindow(r platform.Rect, style platform.Style) (platform.Handle, error) {
	a.next++
	h := a.next

	win := gtk.NewWindow()
	win.SetTitle(style.Title)
	win.SetDecorated(false)
	win.SetResizable(false)
	win.SetDefaultSize(r.Width, r.Height)
	if style.Transparent {
		win.AddCSSClass(cssClass)
	}

	layershell.InitForWindow(win)
	layershell.SetLayer(win, layershell.LayerShellLayerOverlay)
	layershell.SetExclusiveZone(win, 0)
	layershell.SetKeyboardMode(win, layershell.LayerShellKeyboardModeNone)
	layershell.SetNamespace(win, namespace)
	layershell.SetAnchor(win, layershell.LayerShellEdgeTop, true)
	layershell.SetAnchor(win, layershell.LayerShellEdgeLeft, true)
	if m := a.primaryMonitor(); m != nil {
		layershell.SetMonitor(win, m)
	}

	w := &window{win: win, area: gtk.NewDrawingArea()}
	w.area.SetContentWidth(r.Width)
	w.area.SetContentHeight(r.Height)
	w.area.SetDrawFunc(func(_ *gtk.DrawingArea, cr *cairo.Context, _, _ int) {
		if w.surface == nil {
			return
		}
		cr.SetSourceSurface(w.surface, 0, 0)
		cr.Paint()
	})
	win.SetChild(w.area)

	a.connectInput(h, w)

	a.windows[h] = w
	a.place(w, r)
	win.Present()

	a.logger.Debug("created window", "handle", h)
	return h, nil
}

func (a *Adapter) connectInput(h platform.Handle, w *window) {
	motion := gtk.NewEventControllerMotion()
	motion.ConnectEnter(func(x, y float64) {
		a.deliver(h, platform.Event{Kind: platform.EventMouseMove, X: int(x), Y: int(y)})
	})
	motion.ConnectMotion(func(x, y float64) {
		a.deliver(h, platform.Event{Kind: platform.EventMouseMove, X: int(x), Y: int(y)})
	})
	motion.ConnectLeave(func() {
		a.deliver(h, platform.Event{Kind: platform.EventMouseLeave})
	})
	w.win.AddController(motion)

	click := gtk.NewGestureClick()
	click.SetButton(1)
	click.ConnectPressed(func(_ int, x, y float64) {
		a.deliver(h, platform.Event{Kind: platform.EventMouseDown, X: int(x), Y: int(y)})
	})
	w.win.AddController(click)

	w.win.ConnectCloseRequest(func() bool {
		a.deliver(h, platform.Event{Kind: platform.EventDestroyRequested})
		return true
	})
}

// place moves w with layer-shell margins relative to the monitor.
func (a *Adapter) place(w *window, r platform.Rect) {
	screen := a.ScreenGeometry()
	layershell.SetMargin(w.win, layershell.LayerShellEdgeLeft, r.X-screen.X)
	layershell.SetMargin(w.win, layershell.LayerShellEdgeTop, r.Y-screen.Y)
	if r.Width != w.rect.Width || r.Height != w.rect.Height {
		w.win.SetDefaultSize(r.Width, r.Height)
		w.area.SetContentWidth(r.Width)
		w.area.SetContentHeight(r.Height)
	}
	w.rect = r
}

// DestroyWindow implements platform.Adapter.
func (a *Adapter) DestroyWindow(h platform.Handle) error {
	w, err := a.live(h)
	if err != nil {
		return err
	}
	a.cancelTimer(w)
	delete(a.windows, h)
	a.pending = slices.DeleteFunc(a.pending, func(p platform.Handle) bool { return p == h })

	w.surface = nil
	w.win.Destroy()
	return nil
}

// MoveWindow implements platform.Adapter.
func (a *Adapter) MoveWindow(h platform.Handle, r platform.Rect) error {
	w, err := a.live(h)
	if err != nil {
		return err
	}
	a.place(w, r)
	return nil
}

// Invalidate implements platform.Adapter. Paint is delivered from an idle
// callback, after the current handler has returned.
func (a *Adapter) Invalidate(h platform.Handle) {
	if _, ok := a.windows[h]; !ok || slices.Contains(a.pending, h) {
		return
	}
	a.pending = append(a.pending, h)
	if len(a.pending) == 1 {
		glib.IdleAdd(a.flush)
	}
}

// Draw implements platform.Adapter.
func (a *Adapter) Draw(h platform.Handle, frame *render.Frame) error {
	w, err := a.live(h)
	if err != nil {
		return err
	}
	w.surface = cairo.CreateSurfaceFromImage(frame.Image)
	w.area.QueueDraw()
	return nil
}

// SetTimer implements platform.Adapter.
func (a *Adapter) SetTimer(h platform.Handle, interval time.Duration) error {
	w, err := a.live(h)
	if err != nil {
		return err
	}
	a.cancelTimer(w)
	var id glib.SourceHandle
	id = glib.TimeoutAdd(uint(interval.Milliseconds()), func() bool {
		a.deliver(h, platform.Event{Kind: platform.EventTimerTick})
		cur, alive := a.windows[h]
		return alive && cur.timer == id
	})
	w.timer = id
	return nil
}

// CancelTimer implements platform.Adapter.
func (a *Adapter) CancelTimer(h platform.Handle) {
	if w, ok := a.windows[h]; ok {
		a.cancelTimer(w)
	}
}

func (a *Adapter) cancelTimer(w *window) {
	if w.timer != 0 {
		glib.SourceRemove(w.timer)
		w.timer = 0
	}
}

// CompositorEnabled implements platform.Adapter.
func (a *Adapter) CompositorEnabled() bool {
	return a.display.IsComposited()
}

// ScreenGeometry implements platform.Adapter with the first monitor's
// geometry. Layer-shell surfaces on the overlay layer may cover panels.
func (a *Adapter) ScreenGeometry() platform.Rect {
	m := a.primaryMonitor()
	if m == nil {
		return platform.Rect{Width: 1920, Height: 1080}
	}
	g := m.Geometry()
	return platform.Rect{X: g.X(), Y: g.Y(), Width: g.Width(), Height: g.Height()}
}

func (a *Adapter) primaryMonitor() *gdk.Monitor {
	monitors := a.display.Monitors()
	if monitors == nil || monitors.NItems() == 0 {
		return nil
	}
	return wrapMonitor(monitors.Item(0))
}

// wrapMonitor wraps a list item as a gdk.Monitor; gotk4 does not export
// its own wrapper.
func wrapMonitor(obj *coreglib.Object) *gdk.Monitor {
	if obj == nil {
		return nil
	}
	type monitor struct {
		_ [0]func()
		*coreglib.Object
	}
	m := &monitor{Object: obj}
	return (*gdk.Monitor)(unsafe.Pointer(m))
}

// PrefersDark implements platform.DarkModeReporter via libadwaita.
func (a *Adapter) PrefersDark() bool {
	return adw.StyleManagerGetDefault().Dark()
}

// SetEventHandler implements platform.Adapter.
func (a *Adapter) SetEventHandler(fn platform.EventHandler) { a.handler = fn }

// Post implements platform.Adapter.
func (a *Adapter) Post(fn func()) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	glib.IdleAdd(fn)
	return true
}

// Run implements platform.Adapter with a GLib main loop.
func (a *Adapter) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		glib.IdleAdd(a.loop.Quit)
	})
	defer stop()

	a.logger.Debug("gtk loop started")
	a.loop.Run()

	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.logger.Debug("gtk loop stopped")
	return nil
}

func (a *Adapter) deliver(h platform.Handle, ev platform.Event) {
	if a.handler == nil {
		return
	}
	a.handler(h, ev)
}

func (a *Adapter) flush() {
	for len(a.pending) > 0 {
		h := a.pending[0]
		a.pending = a.pending[1:]
		a.deliver(h, platform.Event{Kind: platform.EventPaint})
	}
}
