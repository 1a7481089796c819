//go:build linux && cgo

package main

import (
	"runtime"

	"github.com/jmylchreest/retrotoast/internal/platform"
	"github.com/jmylchreest/retrotoast/internal/platform/gtk"
)

const nativePlatform = "gtk"

// GTK must run on the thread that initialised it.
func init() {
	runtime.LockOSThread()
}

func newNativeAdapter() (platform.Adapter, error) {
	a, err := gtk.New(logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}
