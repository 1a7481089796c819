//go:build !windows && !(linux && cgo)

package main

import (
	"fmt"
	"runtime"

	"github.com/jmylchreest/retrotoast/internal/platform"
)

const nativePlatform = "native"

func newNativeAdapter() (platform.Adapter, error) {
	return nil, fmt.Errorf("no native window host for %s: %w", runtime.GOOS, platform.ErrUnavailable)
}
