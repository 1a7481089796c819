//go:build windows

package win32

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")
	gdi32  = windows.NewLazySystemDLL("gdi32.dll")
	dwmapi = windows.NewLazySystemDLL("dwmapi.dll")

	procRegisterClassEx      = user32.NewProc("RegisterClassExW")
	procCreateWindowEx       = user32.NewProc("CreateWindowExW")
	procDestroyWindow        = user32.NewProc("DestroyWindow")
	procDefWindowProc        = user32.NewProc("DefWindowProcW")
	procShowWindow           = user32.NewProc("ShowWindow")
	procSetWindowPos         = user32.NewProc("SetWindowPos")
	procSetTimer             = user32.NewProc("SetTimer")
	procKillTimer            = user32.NewProc("KillTimer")
	procGetMessage           = user32.NewProc("GetMessageW")
	procPeekMessage          = user32.NewProc("PeekMessageW")
	procTranslateMessage     = user32.NewProc("TranslateMessage")
	procDispatchMessage      = user32.NewProc("DispatchMessageW")
	procPostThreadMessage    = user32.NewProc("PostThreadMessageW")
	procLoadCursor           = user32.NewProc("LoadCursorW")
	procTrackMouseEvent      = user32.NewProc("TrackMouseEvent")
	procSystemParametersInfo = user32.NewProc("SystemParametersInfoW")
	procGetDC                = user32.NewProc("GetDC")
	procReleaseDC            = user32.NewProc("ReleaseDC")
	procUpdateLayeredWindow  = user32.NewProc("UpdateLayeredWindow")

	procCreateCompatibleDC = gdi32.NewProc("CreateCompatibleDC")
	procCreateDIBSection   = gdi32.NewProc("CreateDIBSection")
	procSelectObject       = gdi32.NewProc("SelectObject")
	procDeleteObject       = gdi32.NewProc("DeleteObject")
	procDeleteDC           = gdi32.NewProc("DeleteDC")

	procDwmIsCompositionEnabled = dwmapi.NewProc("DwmIsCompositionEnabled")
)

const (
	wsPopup = 0x80000000

	wsExTopmost    = 0x00000008
	wsExToolWindow = 0x00000080
	wsExLayered    = 0x00080000
	wsExNoActivate = 0x08000000

	wmClose       = 0x0010
	wmTimer       = 0x0113
	wmMouseMove   = 0x0200
	wmLButtonDown = 0x0201
	wmMouseLeave  = 0x02A3
	wmApp         = 0x8000
	wmAppPost     = wmApp + 1
	wmAppQuit     = wmApp + 2

	swShowNoActivate = 4

	swpNoActivate = 0x0010
	swpNoZOrder   = 0x0004

	hwndTopmost = ^uintptr(0)

	idcArrow = 32512

	spiGetWorkArea = 0x0030

	tmeLeave = 0x00000002

	pmNoRemove = 0x0000

	biRGB        = 0
	dibRGBColors = 0

	acSrcOver  = 0x00
	acSrcAlpha = 0x01
	ulwAlpha   = 0x00000002

	toastTimerID = 1
)

type wndClassEx struct {
	CbSize        uint32
	Style         uint32
	LpfnWndProc   uintptr
	CbClsExtra    int32
	CbWndExtra    int32
	HInstance     windows.Handle
	HIcon         windows.Handle
	HCursor       windows.Handle
	HbrBackground windows.Handle
	LpszMenuName  *uint16
	LpszClassName *uint16
	HIconSm       windows.Handle
}

type point struct {
	X, Y int32
}

type size struct {
	CX, CY int32
}

type rect struct {
	Left, Top, Right, Bottom int32
}

type msg struct {
	Hwnd    windows.HWND
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
}

type trackMouseEvent struct {
	CbSize      uint32
	DwFlags     uint32
	HwndTrack   windows.HWND
	DwHoverTime uint32
}

type bitmapInfoHeader struct {
	BiSize          uint32
	BiWidth         int32
	BiHeight        int32
	BiPlanes        uint16
	BiBitCount      uint16
	BiCompression   uint32
	BiSizeImage     uint32
	BiXPelsPerMeter int32
	BiYPelsPerMeter int32
	BiClrUsed       uint32
	BiClrImportant  uint32
}

type blendFunction struct {
	BlendOp             byte
	BlendFlags          byte
	SourceConstantAlpha byte
	AlphaFormat         byte
}

func loWord(v uintptr) int { return int(int16(v & 0xffff)) }
func hiWord(v uintptr) int { return int(int16((v >> 16) & 0xffff)) }

func ptr[T any](v *T) uintptr { return uintptr(unsafe.Pointer(v)) }
