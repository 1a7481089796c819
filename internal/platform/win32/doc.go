// Package win32 hosts toasts as native Windows popup windows. Frames are
// pushed with UpdateLayeredWindow so the shadow padding is truly
// translucent, and the windows never take focus.
package win32
