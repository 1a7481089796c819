package display

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/retrotoast/internal/config"
	"github.com/jmylchreest/retrotoast/internal/model"
	"github.com/jmylchreest/retrotoast/internal/platform"
	"github.com/jmylchreest/retrotoast/internal/platform/headless"
	"github.com/jmylchreest/retrotoast/internal/render"
)

// Window-local points on a default toast with 8px shadow padding.
const (
	closeX, closeY = 344, 32
	bodyX, bodyY   = 100, 120
)

type closed struct {
	id     model.ID
	reason model.CloseReason
}

type fixture struct {
	m      *Manager
	a      *headless.Adapter
	closed []closed
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	a := headless.New(quietLogger())
	f := &fixture{a: a}
	f.m = NewManager(a, cfg, quietLogger())
	f.m.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	f.m.SetCloseCallback(func(id model.ID, reason model.CloseReason) {
		f.closed = append(f.closed, closed{id, reason})
	})
	return f
}

func (f *fixture) submit(t *testing.T, title string) (model.ID, platform.Handle) {
	t.Helper()
	id, err := f.m.Submit(model.Notification{AppName: "test", Title: title})
	require.NoError(t, err)
	toast, ok := f.m.Get(id)
	require.True(t, ok)
	return id, toast.Handle
}

func (f *fixture) rect(t *testing.T, id model.ID) platform.Rect {
	t.Helper()
	toast, ok := f.m.Get(id)
	require.True(t, ok)
	w, ok := f.a.Window(toast.Handle)
	require.True(t, ok)
	assert.Equal(t, toast.Rect, w.Rect, "manager and platform disagree on position")
	return toast.Rect
}

func TestSubmit_NewestAtAnchorOlderShifted(t *testing.T) {
	f := newFixture(t, nil)

	a, _ := f.submit(t, "A")
	anchor := f.rect(t, a)
	// bottom-right, 15px offsets, 360x170 card + 8px shadow padding
	assert.Equal(t, platform.Rect{X: 1920 - 15 - 376, Y: 1080 - 15 - 186, Width: 376, Height: 186}, anchor)

	b, _ := f.submit(t, "B")
	assert.Equal(t, []model.ID{a, b}, f.m.Stack())
	assert.Equal(t, anchor, f.rect(t, b))
	assert.Equal(t, anchor.Y-(186+10), f.rect(t, a).Y)

	require.True(t, f.m.Retire(a))
	assert.Equal(t, []model.ID{b}, f.m.Stack())
	assert.Equal(t, anchor, f.rect(t, b))
}

func TestSubmit_DistinctNonOverlappingOffsets(t *testing.T) {
	for _, pos := range config.ValidPositions() {
		t.Run(string(pos), func(t *testing.T) {
			f := newFixture(t, func(c *config.Config) { c.Display.Position = string(pos) })

			var ids []model.ID
			for i := range 5 {
				id, _ := f.submit(t, string(rune('A'+i)))
				ids = append(ids, id)
			}

			rects := make([]platform.Rect, len(ids))
			for i, id := range ids {
				rects[i] = f.rect(t, id)
			}

			for i := range rects {
				for j := i + 1; j < len(rects); j++ {
					assert.False(t, rects[i].Overlaps(rects[j]), "toasts %d and %d overlap", i, j)

					// i is older than j, so it must be farther from the anchor edge
					if pos.IsBottom() {
						assert.Less(t, rects[i].Y, rects[j].Y)
					} else {
						assert.Greater(t, rects[i].Y, rects[j].Y)
					}
				}
			}
		})
	}
}

func TestSubmit_PlatformUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	existing, _ := f.submit(t, "existing")
	before := f.rect(t, existing)

	f.a.Refuse = true
	id, err := f.m.Submit(model.Notification{Title: "refused"})
	require.Error(t, err)
	assert.Empty(t, id)
	assert.ErrorIs(t, err, ErrPlatformUnavailable)
	assert.True(t, IsPlatformUnavailable(err))

	var de *DisplayError
	assert.ErrorAs(t, err, &de)

	// Nothing moved, nothing added
	assert.Equal(t, []model.ID{existing}, f.m.Stack())
	assert.Equal(t, before, f.rect(t, existing))
	assert.Len(t, f.a.Live(), 1)
}

func TestSubmit_TimerRefusedReleasesWindow(t *testing.T) {
	f := newFixture(t, nil)
	f.a.RefuseTimer = true

	_, err := f.m.Submit(model.Notification{Title: "no timer"})
	require.ErrorIs(t, err, ErrPlatformUnavailable)

	assert.Equal(t, 0, f.m.ActiveCount())
	assert.Empty(t, f.a.Live())
	assert.Len(t, f.a.Calls("create"), 1)
	assert.Len(t, f.a.Calls("destroy"), 1)
}

func TestSubmit_NeverTimeoutNeedsNoTimer(t *testing.T) {
	f := newFixture(t, nil)
	f.a.RefuseTimer = true

	id, err := f.m.Submit(model.Notification{Title: "sticky", Timeout: model.TimeoutNever})
	require.NoError(t, err)

	toast, _ := f.m.Get(id)
	assert.False(t, toast.Expires())
	assert.Empty(t, f.a.Calls("set-timer"))
}

func TestSubmit_CopiesNotification(t *testing.T) {
	f := newFixture(t, nil)
	n := model.Notification{Title: "orig", Icon: &model.Icon{Pix: make([]byte, 4), Width: 1, Height: 1}}

	id, err := f.m.Submit(n)
	require.NoError(t, err)
	n.Title = "changed"
	n.Icon.Pix[0] = 99

	toast, _ := f.m.Get(id)
	assert.Equal(t, "orig", toast.Notification.Title)
	assert.Equal(t, byte(0), toast.Notification.Icon.Pix[0])
}

func TestSubmit_DrawsInitialFrame(t *testing.T) {
	f := newFixture(t, nil)
	_, h := f.submit(t, "hello")

	w, _ := f.a.Window(h)
	require.NotNil(t, w.Frame)
	assert.Equal(t, 1, w.Draws)
	assert.True(t, w.Style.Transparent)
	assert.Equal(t, "test", w.Style.Title)
	assert.Equal(t, 250*time.Millisecond, w.Timer)
}

func TestSubmit_NoCompositorNoShadow(t *testing.T) {
	f := newFixture(t, nil)
	f.a.Compositor = false

	id, h := f.submit(t, "flat")
	r := f.rect(t, id)
	assert.Equal(t, 360, r.Width)
	assert.Equal(t, 170, r.Height)

	w, _ := f.a.Window(h)
	assert.False(t, w.Style.Transparent)
}

func TestRetire_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	id, h := f.submit(t, "once")

	assert.True(t, f.m.Retire(id))
	assert.False(t, f.m.Retire(id))
	assert.False(t, f.m.Retire(id))

	assert.Equal(t, 1, f.a.CountCalls("destroy", h))
	assert.Equal(t, 1, f.a.CountCalls("cancel-timer", h))
	assert.NotContains(t, f.m.Stack(), id)
	require.Len(t, f.closed, 1)
	assert.Equal(t, closed{id, model.ReasonCancelled}, f.closed[0])

	_, ok := f.m.Get(id)
	assert.False(t, ok)
}

func TestLiveWindowsMatchStack(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Display.MaxVisible = 4 })
	rng := rand.New(rand.NewPCG(1, 2))

	for step := range 200 {
		stack := f.m.Stack()
		if len(stack) == 0 || rng.IntN(3) > 0 {
			f.submit(t, "n")
		} else {
			id := stack[rng.IntN(len(stack))]
			f.m.Retire(id)
			if rng.IntN(2) == 0 {
				f.m.Retire(id)
			}
		}

		stack = f.m.Stack()
		require.Equal(t, len(stack), len(f.a.Live()), "step %d", step)
		require.Equal(t, len(stack), f.m.ActiveCount())

		seen := make(map[model.ID]bool)
		for _, id := range stack {
			require.False(t, seen[id], "duplicate %s in stack", id)
			seen[id] = true
			toast, ok := f.m.Get(id)
			require.True(t, ok)
			require.True(t, toast.State == model.StateVisible || toast.State == model.StateHovering)
		}
	}
}

func TestHover_RepaintOncePerChange(t *testing.T) {
	f := newFixture(t, nil)
	id, h := f.submit(t, "hover")
	w, _ := f.a.Window(h)

	for range 5 {
		f.a.Move(h, closeX, closeY)
	}
	assert.Equal(t, 1, w.Invalidates)
	toast, _ := f.m.Get(id)
	assert.Equal(t, model.HoverClose, toast.Hover)
	assert.Equal(t, model.StateHovering, toast.State)

	// Nearby points inside the close control change nothing
	f.a.Move(h, closeX-2, closeY-2)
	assert.Equal(t, 1, w.Invalidates)

	f.a.Move(h, bodyX, bodyY)
	f.a.Move(h, bodyX+5, bodyY)
	assert.Equal(t, 2, w.Invalidates)

	f.a.Deliver(h, platform.Event{Kind: platform.EventMouseLeave})
	f.a.Deliver(h, platform.Event{Kind: platform.EventMouseLeave})
	assert.Equal(t, 3, w.Invalidates)
	toast, _ = f.m.Get(id)
	assert.Equal(t, model.StateVisible, toast.State)

	// Each invalidate produced exactly one paint after dispatch
	assert.Equal(t, 1+3, w.Draws)
	assert.Equal(t, model.HoverNone, w.Frame.Hover)
}

func TestMouseDown_CloseDismisses(t *testing.T) {
	f := newFixture(t, nil)
	id, h := f.submit(t, "bye")

	f.a.Click(h, closeX, closeY)

	assert.Empty(t, f.m.Stack())
	require.Len(t, f.closed, 1)
	assert.Equal(t, closed{id, model.ReasonDismissed}, f.closed[0])
	w, _ := f.a.Window(h)
	assert.True(t, w.Destroyed)
}

func TestMouseDown_BodyClickPolicy(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		f := newFixture(t, nil)
		id, h := f.submit(t, "stay")
		f.a.Click(h, bodyX, bodyY)
		assert.Equal(t, []model.ID{id}, f.m.Stack())
		toast, _ := f.m.Get(id)
		assert.Equal(t, model.HoverBody, toast.Hover)
	})

	t.Run("dismiss", func(t *testing.T) {
		f := newFixture(t, func(c *config.Config) { c.Mouse.BodyClick = "dismiss" })
		id, h := f.submit(t, "go")
		f.a.Click(h, bodyX, bodyY)
		assert.Empty(t, f.m.Stack())
		assert.Equal(t, []closed{{id, model.ReasonDismissed}}, f.closed)
	})

	t.Run("shadow padding ignored", func(t *testing.T) {
		f := newFixture(t, func(c *config.Config) { c.Mouse.BodyClick = "dismiss" })
		id, h := f.submit(t, "go")
		f.a.Click(h, 2, 2)
		assert.Equal(t, []model.ID{id}, f.m.Stack())
	})
}

func TestTimer_Expires(t *testing.T) {
	f := newFixture(t, nil)
	id, h := f.submit(t, "tick")

	// 5s default at 250ms per tick
	f.a.Tick(h, 19)
	toast, ok := f.m.Get(id)
	require.True(t, ok)
	assert.Equal(t, 250*time.Millisecond, toast.Remaining)

	f.a.Tick(h, 1)
	assert.Empty(t, f.m.Stack())
	assert.Equal(t, []closed{{id, model.ReasonExpired}}, f.closed)
}

func TestTimer_ExplicitTimeout(t *testing.T) {
	f := newFixture(t, nil)
	id, err := f.m.Submit(model.Notification{Title: "quick", Timeout: model.TimeoutAfter(time.Second)})
	require.NoError(t, err)
	toast, _ := f.m.Get(id)

	f.a.Tick(toast.Handle, 4)
	assert.Empty(t, f.m.Stack())
}

func TestTimer_PausedWhileHovered(t *testing.T) {
	f := newFixture(t, nil)
	id, h := f.submit(t, "hold")

	f.a.Move(h, bodyX, bodyY)
	f.a.Tick(h, 100)
	toast, ok := f.m.Get(id)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, toast.Remaining)

	f.a.Deliver(h, platform.Event{Kind: platform.EventMouseLeave})
	f.a.Tick(h, 20)
	_, ok = f.m.Get(id)
	assert.False(t, ok)
}

func TestTimer_NoPauseWhenDisabled(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Behavior.PauseOnHover = false })
	_, h := f.submit(t, "go anyway")

	f.a.Move(h, bodyX, bodyY)
	f.a.Tick(h, 20)
	assert.Empty(t, f.m.Stack())
}

func TestTimerAndCloseRace(t *testing.T) {
	f := newFixture(t, nil)
	id, h := f.submit(t, "race")
	f.a.Tick(h, 19)

	// Click lands first, then the already-queued tick arrives.
	f.a.Click(h, closeX, closeY)
	f.a.Deliver(h, platform.Event{Kind: platform.EventTimerTick})
	f.a.Deliver(h, platform.Event{Kind: platform.EventMouseDown, X: closeX, Y: closeY})

	assert.Equal(t, 1, f.a.CountCalls("destroy", h))
	assert.Equal(t, []closed{{id, model.ReasonDismissed}}, f.closed)
}

func TestStaleEventsIgnored(t *testing.T) {
	f := newFixture(t, nil)
	id, h := f.submit(t, "x")
	f.m.Retire(id)

	for _, kind := range []platform.EventKind{
		platform.EventMouseMove, platform.EventMouseLeave, platform.EventMouseDown,
		platform.EventPaint, platform.EventTimerTick, platform.EventDestroyRequested,
	} {
		f.a.Deliver(h, platform.Event{Kind: kind, X: closeX, Y: closeY})
		f.a.Deliver(platform.Handle(0xdead), platform.Event{Kind: kind})
	}

	assert.Len(t, f.closed, 1)
	assert.Equal(t, 1, f.a.CountCalls("destroy", h))
}

func TestDestroyRequested(t *testing.T) {
	f := newFixture(t, nil)
	id, h := f.submit(t, "x")

	f.a.Deliver(h, platform.Event{Kind: platform.EventDestroyRequested})
	assert.Equal(t, []closed{{id, model.ReasonCancelled}}, f.closed)
}

func TestMalformedIconDegrades(t *testing.T) {
	f := newFixture(t, nil)
	var degraded []error
	f.m.SetDegradedCallback(func(_ model.ID, err error) { degraded = append(degraded, err) })

	id, err := f.m.Submit(model.Notification{
		Title: "bad icon",
		Icon:  &model.Icon{Pix: make([]byte, 3), Width: 4, Height: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.ID{id}, f.m.Stack())

	require.Len(t, degraded, 1)
	assert.ErrorIs(t, degraded[0], render.ErrDegraded)

	toast, _ := f.m.Get(id)
	w, _ := f.a.Window(toast.Handle)
	require.NotNil(t, w.Frame)

	// Repaints keep the placeholder without reporting again
	f.a.Move(toast.Handle, bodyX, bodyY)
	assert.Equal(t, 2, w.Draws)
	assert.Len(t, degraded, 1)
}

func TestEviction_MaxVisible(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Display.MaxVisible = 2 })

	a, ha := f.submit(t, "A")
	b, _ := f.submit(t, "B")
	c, _ := f.submit(t, "C")

	assert.Equal(t, []model.ID{b, c}, f.m.Stack())
	assert.Equal(t, []closed{{a, model.ReasonEvicted}}, f.closed)
	w, _ := f.a.Window(ha)
	assert.True(t, w.Destroyed)
}

func TestEviction_ScreenHeight(t *testing.T) {
	f := newFixture(t, nil)
	f.a.Screen = platform.Rect{Width: 1280, Height: 500}

	for range 4 {
		f.submit(t, "n")
	}
	// (500 - 15 + 10) / (186 + 10) = 2 slots
	assert.Len(t, f.m.Stack(), 2)
	for _, id := range f.m.Stack() {
		r := f.rect(t, id)
		assert.GreaterOrEqual(t, r.Y, 0)
	}
}

func TestCloseAll(t *testing.T) {
	f := newFixture(t, nil)
	a, _ := f.submit(t, "A")
	b, _ := f.submit(t, "B")

	f.m.CloseAll()

	assert.Empty(t, f.m.Stack())
	assert.Empty(t, f.a.Live())
	assert.Equal(t, []closed{{a, model.ReasonShutdown}, {b, model.ReasonShutdown}}, f.closed)
}

func TestRetireFromCloseCallback(t *testing.T) {
	f := newFixture(t, nil)
	a, _ := f.submit(t, "A")
	b, _ := f.submit(t, "B")
	c, _ := f.submit(t, "C")

	// Closing C retires A from inside the callback.
	f.m.SetCloseCallback(func(id model.ID, _ model.CloseReason) {
		if id == c {
			f.m.Retire(a)
		}
	})
	f.m.Retire(c)

	assert.Equal(t, []model.ID{b}, f.m.Stack())
	assert.Len(t, f.a.Live(), 1)
	anchor := f.m.layout.CalculatePosition(0, f.a.Screen, render.Layout{Width: 360, Height: 170, Padding: 8}.Size())
	assert.Equal(t, anchor, f.rect(t, b))
}

func TestSubmitFromEvictionCallback(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Display.MaxVisible = 2 })
	a, _ := f.submit(t, "A")
	b, _ := f.submit(t, "B")

	var (
		got            []closed
		depth, deepest int
		d              model.ID
	)
	f.m.SetCloseCallback(func(id model.ID, reason model.CloseReason) {
		depth++
		defer func() { depth-- }()
		deepest = max(deepest, depth)
		got = append(got, closed{id, reason})

		if reason == model.ReasonEvicted && d == "" {
			var err error
			d, err = f.m.Submit(model.Notification{Title: "D"})
			require.NoError(t, err)
		}
	})

	c, err := f.m.Submit(model.Notification{Title: "C"})
	require.NoError(t, err)

	assert.Equal(t, []model.ID{c, d}, f.m.Stack())
	assert.Equal(t, []closed{{a, model.ReasonEvicted}, {b, model.ReasonEvicted}}, got)
	assert.Equal(t, 1, deepest, "close callbacks must not nest")
	assert.Len(t, f.a.Live(), 2)
}

func TestEvictionCallbackSeesNewToast(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Display.MaxVisible = 1 })
	f.submit(t, "A")

	var active int
	var stack []model.ID
	f.m.SetCloseCallback(func(model.ID, model.CloseReason) {
		active = f.m.ActiveCount()
		stack = f.m.Stack()
	})

	b, err := f.m.Submit(model.Notification{Title: "B"})
	require.NoError(t, err)

	assert.Equal(t, 1, active)
	assert.Equal(t, []model.ID{b}, stack)
}

func TestUpdateConfig_Relayout(t *testing.T) {
	f := newFixture(t, nil)
	a, _ := f.submit(t, "A")
	b, hb := f.submit(t, "B")
	before := f.a.CountCalls("invalidate", hb)

	cfg := config.DefaultConfig()
	cfg.Display.Position = string(config.PositionTopLeft)
	cfg.Display.Width = 300
	cfg.Timeouts.Tick = config.Duration(100 * time.Millisecond)
	f.m.UpdateConfig(cfg)

	rb := f.rect(t, b)
	assert.Equal(t, platform.Rect{X: 15, Y: 15, Width: 316, Height: 186}, rb)
	assert.Equal(t, 15+186+10, f.rect(t, a).Y)

	w, _ := f.a.Window(hb)
	assert.Equal(t, 100*time.Millisecond, w.Timer)
	assert.Equal(t, before+1, f.a.CountCalls("invalidate", hb))
}

func TestUpdateConfig_ShrinkEvicts(t *testing.T) {
	f := newFixture(t, nil)
	a, _ := f.submit(t, "A")
	b, _ := f.submit(t, "B")
	c, _ := f.submit(t, "C")

	cfg := config.DefaultConfig()
	cfg.Display.MaxVisible = 1
	f.m.UpdateConfig(cfg)

	assert.Equal(t, []model.ID{c}, f.m.Stack())
	assert.Equal(t, []closed{{a, model.ReasonEvicted}, {b, model.ReasonEvicted}}, f.closed)
}

type recordingPlayer struct{ played []string }

func (p *recordingPlayer) Play(path string) { p.played = append(p.played, path) }

func TestSubmit_Sound(t *testing.T) {
	f := newFixture(t, nil)
	p := &recordingPlayer{}
	f.m.SetSoundPlayer(p)

	_, err := f.m.Submit(model.Notification{Title: "loud"})
	require.NoError(t, err)
	_, err = f.m.Submit(model.Notification{Title: "quiet", Silent: true})
	require.NoError(t, err)
	_, err = f.m.Submit(model.Notification{Title: "custom", SoundFile: "/tmp/ding.wav"})
	require.NoError(t, err)

	assert.Equal(t, []string{"", "/tmp/ding.wav"}, p.played)
}

func TestSetPalette_RepaintsAll(t *testing.T) {
	f := newFixture(t, nil)
	_, ha := f.submit(t, "A")
	_, hb := f.submit(t, "B")

	p := f.m.palette
	p.Background.R = 1
	f.m.SetPalette(p)
	f.a.Flush()

	for _, h := range []platform.Handle{ha, hb} {
		w, _ := f.a.Window(h)
		assert.Equal(t, 2, w.Draws)
	}
}
