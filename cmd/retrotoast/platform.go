package main

import (
	"errors"
	"fmt"

	"github.com/jmylchreest/retrotoast/internal/platform"
	"github.com/jmylchreest/retrotoast/internal/platform/headless"
	"github.com/jmylchreest/retrotoast/internal/platform/term"
)

const (
	platformAuto     = "auto"
	platformTerm     = "term"
	platformHeadless = "headless"
)

// newAdapter creates the window host named by --platform. "auto" tries the
// native host first and falls back to the terminal. stdinBusy keeps the
// terminal host from competing for piped requests.
func newAdapter(name string, stdinBusy bool) (platform.Adapter, error) {
	switch name {
	case platformAuto:
		a, err := newNativeAdapter()
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, platform.ErrUnavailable) {
			return nil, err
		}
		logger.Warn("native windows unavailable, using the terminal", "error", err)
		return newTermAdapter(stdinBusy), nil
	case nativePlatform:
		return newNativeAdapter()
	case platformTerm:
		return newTermAdapter(stdinBusy), nil
	case platformHeadless:
		h := headless.New(logger)
		h.RealTime = true
		return h, nil
	default:
		return nil, fmt.Errorf("unknown platform %q: must be auto, %s, %s or %s",
			name, nativePlatform, platformTerm, platformHeadless)
	}
}

func newTermAdapter(stdinBusy bool) platform.Adapter {
	return term.New(logger, term.Options{AltScreen: true, InputTTY: stdinBusy})
}
