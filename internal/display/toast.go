package display

import (
	"log/slog"
	"time"

	"github.com/jmylchreest/retrotoast/internal/model"
	"github.com/jmylchreest/retrotoast/internal/platform"
	"github.com/jmylchreest/retrotoast/internal/render"
)

// Toast is the runtime state of one visible notification.
type Toast struct {
	ID           model.ID
	Handle       platform.Handle
	Notification model.Notification
	Rect         platform.Rect
	CreatedAt    time.Time
	Lifetime     time.Duration // Zero means never expires
	Remaining    time.Duration
	Hover        model.Hover
	State        model.State
	Degraded     error // Last render degradation, reported once

	layout     render.Layout
	compositor bool
}

// Expires reports whether the toast has a countdown.
func (t *Toast) Expires() bool {
	return t.Lifetime > 0
}

// Layout returns the render geometry the toast was laid out with.
func (t *Toast) Layout() render.Layout {
	return t.layout
}

// transition moves the toast to next, ignoring illegal steps.
func (t *Toast) transition(next model.State, logger *slog.Logger) bool {
	if t.State == next {
		return true
	}
	if !t.State.CanTransition(next) {
		logger.Warn("ignoring illegal toast transition",
			"id", t.ID,
			"from", t.State,
			"to", next,
		)
		return false
	}
	t.State = next
	return true
}
