//go:build windows

package main

import (
	"github.com/jmylchreest/retrotoast/internal/platform"
	"github.com/jmylchreest/retrotoast/internal/platform/win32"
)

const nativePlatform = "win32"

func newNativeAdapter() (platform.Adapter, error) {
	a, err := win32.New(logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}
