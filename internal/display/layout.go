package display

import (
	"image"
	"log/slog"

	"github.com/jmylchreest/retrotoast/internal/config"
	"github.com/jmylchreest/retrotoast/internal/platform"
)

// LayoutManager handles toast positioning within the work area.
type LayoutManager struct {
	config *config.Config
	logger *slog.Logger
}

// NewLayoutManager creates a new layout manager.
func NewLayoutManager(cfg *config.Config, logger *slog.Logger) *LayoutManager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &LayoutManager{
		config: cfg,
		logger: logger,
	}
}

// UpdateConfig swaps the configuration used for positioning.
func (l *LayoutManager) UpdateConfig(cfg *config.Config) {
	l.config = cfg
}

// CalculatePosition returns the window rectangle for the toast at the given
// stack position. Position 0 is at the anchor; higher positions move away
// from it by one window height plus the gap.
func (l *LayoutManager) CalculatePosition(position int, screen platform.Rect, size image.Point) platform.Rect {
	d := l.config.Display
	stackOffset := position * (size.Y + d.Gap)

	var x int
	switch config.Position(d.Position) {
	case config.PositionTopLeft, config.PositionBottomLeft:
		x = screen.X + d.OffsetX
	case config.PositionTopCenter, config.PositionBottomCenter:
		x = screen.X + (screen.Width-size.X)/2
	default:
		x = screen.X + screen.Width - d.OffsetX - size.X
	}

	var y int
	if l.IsBottom() {
		y = screen.Y + screen.Height - d.OffsetY - size.Y - stackOffset
	} else {
		y = screen.Y + d.OffsetY + stackOffset
	}

	return platform.Rect{X: x, Y: y, Width: size.X, Height: size.Y}
}

// Capacity returns how many toasts of the given size fit on screen at
// once, capped by max_visible. It is never less than one.
func (l *LayoutManager) Capacity(screen platform.Rect, size image.Point) int {
	d := l.config.Display
	pitch := size.Y + d.Gap
	fit := d.MaxVisible
	if pitch > 0 {
		fit = min(fit, (screen.Height-d.OffsetY+d.Gap)/pitch)
	}
	return max(1, fit)
}

// IsBottom returns true if the configured position is at the bottom of the screen.
func (l *LayoutManager) IsBottom() bool {
	return config.Position(l.config.Display.Position).IsBottom()
}
