package headless

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/retrotoast/internal/platform"
)

func TestAdapter_WindowLifecycle(t *testing.T) {
	a := New(nil)
	h, err := a.CreateWindow(platform.Rect{X: 1, Y: 2, Width: 3, Height: 4}, platform.Style{Title: "x"})
	require.NoError(t, err)

	require.NoError(t, a.MoveWindow(h, platform.Rect{X: 5, Width: 3, Height: 4}))
	require.NoError(t, a.SetTimer(h, time.Second))
	w, ok := a.Window(h)
	require.True(t, ok)
	assert.Equal(t, 5, w.Rect.X)
	assert.Equal(t, time.Second, w.Timer)

	require.NoError(t, a.DestroyWindow(h))
	assert.Empty(t, a.Live())
	assert.ErrorIs(t, a.DestroyWindow(h), platform.ErrUnavailable)
	assert.ErrorIs(t, a.MoveWindow(h, platform.Rect{}), platform.ErrUnavailable)
	assert.Len(t, a.Calls("destroy"), 2)
}

func TestAdapter_Refuse(t *testing.T) {
	a := New(nil)
	a.Refuse = true
	_, err := a.CreateWindow(platform.Rect{}, platform.Style{})
	assert.ErrorIs(t, err, platform.ErrUnavailable)
}

func TestAdapter_InvalidateDeferredUntilDispatchReturns(t *testing.T) {
	a := New(nil)
	h, _ := a.CreateWindow(platform.Rect{}, platform.Style{})

	var order []platform.EventKind
	a.SetEventHandler(func(_ platform.Handle, ev platform.Event) {
		order = append(order, ev.Kind)
		if ev.Kind == platform.EventMouseMove {
			a.Invalidate(h)
			a.Invalidate(h)
		}
	})

	a.Move(h, 1, 1)
	assert.Equal(t, []platform.EventKind{platform.EventMouseMove, platform.EventPaint}, order)

	w, _ := a.Window(h)
	assert.Equal(t, 2, w.Invalidates)
}

func TestAdapter_TickStopsWhenTimerCancelled(t *testing.T) {
	a := New(nil)
	h, _ := a.CreateWindow(platform.Rect{}, platform.Style{})
	require.NoError(t, a.SetTimer(h, time.Second))

	ticks := 0
	a.SetEventHandler(func(h platform.Handle, ev platform.Event) {
		ticks++
		if ticks == 3 {
			a.CancelTimer(h)
		}
	})
	a.Tick(h, 10)
	assert.Equal(t, 3, ticks)
}

func TestAdapter_PostAndRun(t *testing.T) {
	a := New(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	var ran atomic.Int32
	for range 10 {
		require.True(t, a.Post(func() { ran.Add(1) }))
	}
	assert.Eventually(t, func() bool { return ran.Load() == 10 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, a.Post(func() {}))
}

func TestAdapter_RealTimeTimers(t *testing.T) {
	a := New(nil)
	a.RealTime = true
	h, _ := a.CreateWindow(platform.Rect{}, platform.Style{})

	var ticks atomic.Int32
	a.SetEventHandler(func(_ platform.Handle, ev platform.Event) {
		if ev.Kind == platform.EventTimerTick {
			ticks.Add(1)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.True(t, a.Post(func() { _ = a.SetTimer(h, 5*time.Millisecond) }))
	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
