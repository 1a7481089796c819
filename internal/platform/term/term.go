// Package term hosts toasts in a terminal. Each window becomes a bordered
// card laid out on a cell grid, where one cell stands for CellWidth by
// CellHeight pixels, so the display manager's pixel geometry and hit
// testing carry over unchanged.
package term

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jmylchreest/retrotoast/internal/platform"
	"github.com/jmylchreest/retrotoast/internal/render"
)

// Pixel size of one terminal cell.
const (
	CellWidth  = 8
	CellHeight = 16
)

const (
	defaultCols = 80
	defaultRows = 24
)

type window struct {
	rect  platform.Rect
	title string
	frame *render.Frame
	timer *time.Timer
	gen   uint64
}

// Options configure the terminal program.
type Options struct {
	Input     io.Reader // Defaults to stdin
	Output    io.Writer // Defaults to stdout
	AltScreen bool
	// InputTTY reads keys from the controlling terminal, leaving stdin
	// free for piped requests.
	InputTTY bool
}

// Adapter is a platform.Adapter backed by a bubbletea program.
type Adapter struct {
	logger  *slog.Logger
	opts    Options
	keys    KeyMap
	handler platform.EventHandler

	next    platform.Handle
	windows map[platform.Handle]*window
	order   []platform.Handle // Creation order, oldest first
	hovered platform.Handle

	cols, rows int

	depth   int
	pending []platform.Handle

	mu      sync.Mutex
	queue   []func()
	program *tea.Program
	closed  bool
}

// New creates a terminal adapter. Nothing is drawn until Run.
func New(logger *slog.Logger, opts Options) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		logger:  logger,
		opts:    opts,
		keys:    DefaultKeyMap(),
		next:    1,
		windows: make(map[platform.Handle]*window),
		cols:    defaultCols,
		rows:    defaultRows,
	}
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
	a.windows[h] = &window{rect: r, title: style.Title}
	a.order = append(a.order, h)
	return h, nil
}

// DestroyWindow implements platform.Adapter.
func (a *Adapter) DestroyWindow(h platform.Handle) error {
	w, err := a.live(h)
	if err != nil {
		return err
	}
	a.stopTimer(w)
	delete(a.windows, h)
	a.order = slices.DeleteFunc(a.order, func(o platform.Handle) bool { return o == h })
	a.pending = slices.DeleteFunc(a.pending, func(p platform.Handle) bool { return p == h })
	if a.hovered == h {
		a.hovered = 0
	}
	return nil
}

// MoveWindow implements platform.Adapter.
func (a *Adapter) MoveWindow(h platform.Handle, r platform.Rect) error {
	w, err := a.live(h)
	if err != nil {
		return err
	}
	w.rect = r
	return nil
}

// Invalidate implements platform.Adapter.
func (a *Adapter) Invalidate(h platform.Handle) {
	if _, ok := a.windows[h]; !ok || slices.Contains(a.pending, h) {
		return
	}
	a.pending = append(a.pending, h)
	if a.depth == 0 {
		a.wake()
	}
}

// Draw implements platform.Adapter.
func (a *Adapter) Draw(h platform.Handle, frame *render.Frame) error {
	w, err := a.live(h)
	if err != nil {
		return err
	}
	w.frame = frame
	return nil
}

// SetTimer implements platform.Adapter. Ticks are marshalled onto the
// program loop through Post; a generation counter drops ticks from a
// timer that was replaced or cancelled in the meantime.
func (a *Adapter) SetTimer(h platform.Handle, interval time.Duration) error {
	w, err := a.live(h)
	if err != nil {
		return err
	}
	if interval <= 0 {
		return fmt.Errorf("timer interval %s: %w", interval, platform.ErrUnavailable)
	}
	a.stopTimer(w)
	w.gen++
	a.arm(h, w, interval, w.gen)
	return nil
}

func (a *Adapter) arm(h platform.Handle, w *window, interval time.Duration, gen uint64) {
	w.timer = time.AfterFunc(interval, func() {
		a.Post(func() {
			cur, ok := a.windows[h]
			if !ok || cur != w || w.gen != gen {
				return
			}
			a.arm(h, w, interval, gen)
			a.deliver(h, platform.Event{Kind: platform.EventTimerTick})
		})
	})
}

// CancelTimer implements platform.Adapter.
func (a *Adapter) CancelTimer(h platform.Handle) {
	if w, ok := a.windows[h]; ok {
		a.stopTimer(w)
	}
}

func (a *Adapter) stopTimer(w *window) {
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// CompositorEnabled implements platform.Adapter. Cells have no alpha.
func (a *Adapter) CompositorEnabled() bool { return false }

// ScreenGeometry implements platform.Adapter. The last row is kept for
// the key help footer.
func (a *Adapter) ScreenGeometry() platform.Rect {
	return platform.Rect{Width: a.cols * CellWidth, Height: (a.rows - 1) * CellHeight}
}

// SetEventHandler implements platform.Adapter.
func (a *Adapter) SetEventHandler(fn platform.EventHandler) { a.handler = fn }

// Post implements platform.Adapter.
func (a *Adapter) Post(fn func()) bool {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return false
	}
	a.queue = append(a.queue, fn)
	wake := len(a.queue) == 1
	a.mu.Unlock()

	if wake {
		a.wake()
	}
	return true
}

type wakeMsg struct{}

// wake nudges a running program to drain the queue and flush paints.
func (a *Adapter) wake() {
	a.mu.Lock()
	p := a.program
	a.mu.Unlock()
	if p != nil {
		go p.Send(wakeMsg{})
	}
}

// Run implements platform.Adapter. It returns when ctx is cancelled or
// the user quits.
func (a *Adapter) Run(ctx context.Context) error {
	opts := []tea.ProgramOption{tea.WithMouseAllMotion(), tea.WithoutSignalHandler()}
	switch {
	case a.opts.InputTTY:
		opts = append(opts, tea.WithInputTTY())
	case a.opts.Input != nil:
		opts = append(opts, tea.WithInput(a.opts.Input))
	}
	if a.opts.Output != nil {
		opts = append(opts, tea.WithOutput(a.opts.Output))
	}
	if a.opts.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	p := tea.NewProgram(ui{a: a}, opts...)

	a.mu.Lock()
	a.program = p
	a.mu.Unlock()

	stop := context.AfterFunc(ctx, p.Quit)
	defer stop()

	a.logger.Debug("terminal program started", "cols", a.cols, "rows", a.rows)
	_, err := p.Run()

	a.mu.Lock()
	a.closed = true
	a.program = nil
	a.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal program: %w", err)
	}
	return nil
}

// drain runs queued work, then delivers coalesced paints.
func (a *Adapter) drain() {
	a.mu.Lock()
	queue := a.queue
	a.queue = nil
	a.mu.Unlock()

	a.depth++
	for _, fn := range queue {
		fn()
	}
	a.depth--
	a.flush()
}

func (a *Adapter) deliver(h platform.Handle, ev platform.Event) {
	if a.handler == nil {
		return
	}
	a.depth++
	a.handler(h, ev)
	a.depth--
}

func (a *Adapter) flush() {
	for len(a.pending) > 0 {
		h := a.pending[0]
		a.pending = a.pending[1:]
		a.deliver(h, platform.Event{Kind: platform.EventPaint})
	}
}

// newest returns the most recently created live window.
func (a *Adapter) newest() (platform.Handle, bool) {
	if len(a.order) == 0 {
		return 0, false
	}
	return a.order[len(a.order)-1], true
}

// windowAt finds the window covering a cell and the pixel at the cell's
// centre in window-local coordinates.
func (a *Adapter) windowAt(col, row int) (platform.Handle, int, int, bool) {
	x := col*CellWidth + CellWidth/2
	y := row*CellHeight + CellHeight/2
	for _, h := range slices.Backward(a.order) {
		r := a.windows[h].rect
		if x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height {
			return h, x - r.X, y - r.Y, true
		}
	}
	return 0, 0, 0, false
}
