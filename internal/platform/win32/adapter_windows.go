//go:build windows

package win32

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"github.com/jmylchreest/retrotoast/internal/platform"
	"github.com/jmylchreest/retrotoast/internal/render"
)

const className = "RetrotoastToast"

// The window procedure is a process-wide callback, so only one adapter may
// exist at a time.
var (
	currentMu sync.Mutex
	current   *Adapter
	wndProcCB = windows.NewCallback(wndProc)
)

type window struct {
	hwnd     windows.HWND
	rect     platform.Rect
	tracking bool
}

// Adapter hosts toasts as layered, topmost, non-activating popup windows.
// It is bound to the OS thread of the goroutine that called New.
type Adapter struct {
	logger   *slog.Logger
	handler  platform.EventHandler
	threadID uint32

	next    platform.Handle
	windows map[platform.Handle]*window
	byHWND  map[windows.HWND]platform.Handle

	depth   int
	pending []platform.Handle

	mu     sync.Mutex
	posted []func()
	closed bool
}

// New registers the window class and locks the calling goroutine to its
// OS thread. Run must be called from the same goroutine.
func New(logger *slog.Logger) (*Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	currentMu.Lock()
	defer currentMu.Unlock()
	if current != nil {
		return nil, errors.New("win32 adapter already exists")
	}

	runtime.LockOSThread()

	name, err := windows.UTF16PtrFromString(className)
	if err != nil {
		return nil, err
	}
	cursor, _, _ := procLoadCursor.Call(0, idcArrow)
	wc := wndClassEx{
		LpfnWndProc:   wndProcCB,
		HCursor:       windows.Handle(cursor),
		LpszClassName: name,
	}
	wc.CbSize = uint32(unsafe.Sizeof(wc))
	if atom, _, err := procRegisterClassEx.Call(ptr(&wc)); atom == 0 {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("failed to register window class: %w: %w", err, platform.ErrUnavailable)
	}

	// Make sure the thread has a message queue before anyone posts to it.
	var m msg
	procPeekMessage.Call(ptr(&m), 0, 0, 0, pmNoRemove)

	a := &Adapter{
		logger:   logger,
		threadID: windows.GetCurrentThreadId(),
		next:     0x10,
		windows:  make(map[platform.Handle]*window),
		byHWND:   make(map[windows.HWND]platform.Handle),
	}
	current = a
	return a, nil
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
	name, _ := windows.UTF16PtrFromString(className)
	title, _ := windows.UTF16PtrFromString(style.Title)

	hwnd, _, err := procCreateWindowEx.Call(
		wsExLayered|wsExTopmost|wsExToolWindow|wsExNoActivate,
		uintptr(unsafe.Pointer(name)),
		uintptr(unsafe.Pointer(title)),
		wsPopup,
		uintptr(r.X), uintptr(r.Y), uintptr(r.Width), uintptr(r.Height),
		0, 0, 0, 0,
	)
	if hwnd == 0 {
		return 0, fmt.Errorf("CreateWindowEx failed: %w: %w", err, platform.ErrUnavailable)
	}

	a.next++
	h := a.next
	a.windows[h] = &window{hwnd: windows.HWND(hwnd), rect: r}
	a.byHWND[windows.HWND(hwnd)] = h

	procShowWindow.Call(hwnd, swShowNoActivate)
	a.logger.Debug("created window", "handle", h, "hwnd", hwnd)
	return h, nil
}

// DestroyWindow implements platform.Adapter.
func (a *Adapter) DestroyWindow(h platform.Handle) error {
	w, err := a.live(h)
	if err != nil {
		return err
	}
	procKillTimer.Call(uintptr(w.hwnd), toastTimerID)
	delete(a.windows, h)
	delete(a.byHWND, w.hwnd)
	a.pending = slices.DeleteFunc(a.pending, func(p platform.Handle) bool { return p == h })

	if ok, _, err := procDestroyWindow.Call(uintptr(w.hwnd)); ok == 0 {
		return fmt.Errorf("DestroyWindow failed: %w", err)
	}
	return nil
}

// MoveWindow implements platform.Adapter.
func (a *Adapter) MoveWindow(h platform.Handle, r platform.Rect) error {
	w, err := a.live(h)
	if err != nil {
		return err
	}
	ok, _, serr := procSetWindowPos.Call(uintptr(w.hwnd), hwndTopmost,
		uintptr(r.X), uintptr(r.Y), uintptr(r.Width), uintptr(r.Height),
		swpNoActivate)
	if ok == 0 {
		return fmt.Errorf("SetWindowPos failed: %w", serr)
	}
	w.rect = r
	return nil
}

// Invalidate implements platform.Adapter.
func (a *Adapter) Invalidate(h platform.Handle) {
	if _, ok := a.windows[h]; !ok {
		return
	}
	if !slices.Contains(a.pending, h) {
		a.pending = append(a.pending, h)
	}
	if a.depth == 0 {
		// Outside a dispatch: wake the loop so the Paint is not left waiting.
		procPostThreadMessage.Call(uintptr(a.threadID), wmAppPost, 0, 0)
	}
}

// Draw implements platform.Adapter by pushing the frame to the layered
// window with per-pixel alpha.
func (a *Adapter) Draw(h platform.Handle, frame *render.Frame) error {
	w, err := a.live(h)
	if err != nil {
		return err
	}
	img := frame.Image
	width, height := img.Rect.Dx(), img.Rect.Dy()

	screen, _, _ := procGetDC.Call(0)
	if screen == 0 {
		return fmt.Errorf("GetDC failed: %w", platform.ErrUnavailable)
	}
	defer procReleaseDC.Call(0, screen)

	mem, _, _ := procCreateCompatibleDC.Call(screen)
	if mem == 0 {
		return errors.New("CreateCompatibleDC failed")
	}
	defer procDeleteDC.Call(mem)

	bi := bitmapInfoHeader{
		BiWidth:       int32(width),
		BiHeight:      -int32(height), // top-down
		BiPlanes:      1,
		BiBitCount:    32,
		BiCompression: biRGB,
	}
	bi.BiSize = uint32(unsafe.Sizeof(bi))

	var bits unsafe.Pointer
	bmp, _, _ := procCreateDIBSection.Call(mem, ptr(&bi), dibRGBColors, uintptr(unsafe.Pointer(&bits)), 0, 0)
	if bmp == 0 || bits == nil {
		return errors.New("CreateDIBSection failed")
	}
	defer procDeleteObject.Call(bmp)

	// image.RGBA is premultiplied, which is what ULW_ALPHA expects; only
	// the channel order differs.
	dst := unsafe.Slice((*byte)(bits), width*height*4)
	for y := range height {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		out := dst[y*width*4:]
		for x := 0; x < width*4; x += 4 {
			out[x+0] = row[x+2]
			out[x+1] = row[x+1]
			out[x+2] = row[x+0]
			out[x+3] = row[x+3]
		}
	}

	old, _, _ := procSelectObject.Call(mem, bmp)
	defer procSelectObject.Call(mem, old)

	dstPt := point{X: int32(w.rect.X), Y: int32(w.rect.Y)}
	sz := size{CX: int32(width), CY: int32(height)}
	var srcPt point
	blend := blendFunction{BlendOp: acSrcOver, SourceConstantAlpha: 255, AlphaFormat: acSrcAlpha}

	ok, _, uerr := procUpdateLayeredWindow.Call(uintptr(w.hwnd), screen,
		ptr(&dstPt), ptr(&sz), mem, ptr(&srcPt), 0, ptr(&blend), ulwAlpha)
	if ok == 0 {
		return fmt.Errorf("UpdateLayeredWindow failed: %w", uerr)
	}
	return nil
}

// SetTimer implements platform.Adapter. Setting the same timer id again
// replaces the interval.
func (a *Adapter) SetTimer(h platform.Handle, interval time.Duration) error {
	w, err := a.live(h)
	if err != nil {
		return err
	}
	if id, _, serr := procSetTimer.Call(uintptr(w.hwnd), toastTimerID, uintptr(interval.Milliseconds()), 0); id == 0 {
		return fmt.Errorf("SetTimer failed: %w: %w", serr, platform.ErrUnavailable)
	}
	return nil
}

// CancelTimer implements platform.Adapter.
func (a *Adapter) CancelTimer(h platform.Handle) {
	if w, ok := a.windows[h]; ok {
		procKillTimer.Call(uintptr(w.hwnd), toastTimerID)
	}
}

// CompositorEnabled implements platform.Adapter. DWM composition is always
// on from Windows 8; the call matters on Windows 7 with the basic theme.
func (a *Adapter) CompositorEnabled() bool {
	if procDwmIsCompositionEnabled.Find() != nil {
		return false
	}
	var enabled int32
	hr, _, _ := procDwmIsCompositionEnabled.Call(ptr(&enabled))
	return hr == 0 && enabled != 0
}

// ScreenGeometry implements platform.Adapter with the primary work area,
// which excludes the taskbar.
func (a *Adapter) ScreenGeometry() platform.Rect {
	var r rect
	if ok, _, _ := procSystemParametersInfo.Call(spiGetWorkArea, 0, ptr(&r), 0); ok == 0 {
		a.logger.Warn("failed to query work area")
		return platform.Rect{Width: 1024, Height: 768}
	}
	return platform.Rect{
		X:      int(r.Left),
		Y:      int(r.Top),
		Width:  int(r.Right - r.Left),
		Height: int(r.Bottom - r.Top),
	}
}

// PrefersDark implements platform.DarkModeReporter from the personalisation
// settings. Versions without the setting are treated as dark.
func (a *Adapter) PrefersDark() bool {
	k, err := registry.OpenKey(registry.CURRENT_USER,
		`Software\Microsoft\Windows\CurrentVersion\Themes\Personalize`, registry.QUERY_VALUE)
	if err != nil {
		return true
	}
	defer k.Close()

	light, _, err := k.GetIntegerValue("AppsUseLightTheme")
	if err != nil {
		return true
	}
	return light == 0
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
	a.posted = append(a.posted, fn)
	a.mu.Unlock()

	procPostThreadMessage.Call(uintptr(a.threadID), wmAppPost, 0, 0)
	return true
}

func (a *Adapter) drainPosted() {
	for {
		a.mu.Lock()
		fns := a.posted
		a.posted = nil
		a.mu.Unlock()
		if len(fns) == 0 {
			break
		}
		for _, fn := range fns {
			a.depth++
			fn()
			a.depth--
		}
	}
	if a.depth == 0 {
		a.flush()
	}
}

// Run implements platform.Adapter with a standard message loop.
func (a *Adapter) Run(ctx context.Context) error {
	defer a.release()

	stop := context.AfterFunc(ctx, func() {
		procPostThreadMessage.Call(uintptr(a.threadID), wmAppQuit, 0, 0)
	})
	defer stop()

	a.drainPosted()

	var m msg
	for {
		ret, _, err := procGetMessage.Call(ptr(&m), 0, 0, 0)
		switch int32(ret) {
		case -1:
			return fmt.Errorf("GetMessage failed: %w", err)
		case 0:
			return nil
		}

		if m.Hwnd == 0 {
			switch m.Message {
			case wmAppPost:
				a.drainPosted()
				continue
			case wmAppQuit:
				return nil
			}
		}
		procTranslateMessage.Call(ptr(&m))
		procDispatchMessage.Call(ptr(&m))
	}
}

func (a *Adapter) release() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	a.drainPosted()

	currentMu.Lock()
	if current == a {
		current = nil
	}
	currentMu.Unlock()
	runtime.UnlockOSThread()
	a.logger.Debug("win32 loop stopped")
}

func (a *Adapter) deliver(h platform.Handle, ev platform.Event) {
	if a.handler == nil {
		return
	}
	a.depth++
	a.handler(h, ev)
	a.depth--
	if a.depth == 0 {
		a.flush()
	}
}

func (a *Adapter) flush() {
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

func (a *Adapter) trackLeave(w *window) {
	if w.tracking {
		return
	}
	tme := trackMouseEvent{DwFlags: tmeLeave, HwndTrack: w.hwnd}
	tme.CbSize = uint32(unsafe.Sizeof(tme))
	if ok, _, _ := procTrackMouseEvent.Call(ptr(&tme)); ok != 0 {
		w.tracking = true
	}
}

func wndProc(hwnd windows.HWND, message uint32, wParam, lParam uintptr) uintptr {
	a := current
	if a == nil {
		ret, _, _ := procDefWindowProc.Call(uintptr(hwnd), uintptr(message), wParam, lParam)
		return ret
	}
	h, known := a.byHWND[hwnd]

	switch message {
	case wmMouseMove:
		if known {
			a.trackLeave(a.windows[h])
			a.deliver(h, platform.Event{Kind: platform.EventMouseMove, X: loWord(lParam), Y: hiWord(lParam)})
		}
		return 0

	case wmMouseLeave:
		if known {
			a.windows[h].tracking = false
			a.deliver(h, platform.Event{Kind: platform.EventMouseLeave})
		}
		return 0

	case wmLButtonDown:
		if known {
			a.deliver(h, platform.Event{Kind: platform.EventMouseDown, X: loWord(lParam), Y: hiWord(lParam)})
		}
		return 0

	case wmTimer:
		if known && wParam == toastTimerID {
			a.deliver(h, platform.Event{Kind: platform.EventTimerTick})
		}
		return 0

	case wmClose:
		// The manager decides; DestroyWindow follows from it.
		if known {
			a.deliver(h, platform.Event{Kind: platform.EventDestroyRequested})
			return 0
		}
	}

	ret, _, _ := procDefWindowProc.Call(uintptr(hwnd), uintptr(message), wParam, lParam)
	return ret
}
