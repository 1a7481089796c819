package display

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/retrotoast/internal/config"
	"github.com/jmylchreest/retrotoast/internal/platform"
)

func TestLayoutManager_CalculatePosition(t *testing.T) {
	screen := platform.Rect{X: 100, Y: 50, Width: 1000, Height: 800}
	size := image.Pt(200, 100)

	tests := []struct {
		position config.Position
		slot     int
		want     platform.Rect
	}{
		{config.PositionBottomRight, 0, platform.Rect{X: 100 + 1000 - 15 - 200, Y: 50 + 800 - 15 - 100, Width: 200, Height: 100}},
		{config.PositionBottomRight, 2, platform.Rect{X: 885, Y: 735 - 2*110, Width: 200, Height: 100}},
		{config.PositionBottomLeft, 1, platform.Rect{X: 115, Y: 735 - 110, Width: 200, Height: 100}},
		{config.PositionBottomCenter, 0, platform.Rect{X: 100 + 400, Y: 735, Width: 200, Height: 100}},
		{config.PositionTopLeft, 0, platform.Rect{X: 115, Y: 65, Width: 200, Height: 100}},
		{config.PositionTopRight, 1, platform.Rect{X: 885, Y: 65 + 110, Width: 200, Height: 100}},
		{config.PositionTopCenter, 3, platform.Rect{X: 500, Y: 65 + 330, Width: 200, Height: 100}},
	}

	for _, tt := range tests {
		t.Run(string(tt.position), func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Display.Position = string(tt.position)
			l := NewLayoutManager(cfg, nil)
			assert.Equal(t, tt.want, l.CalculatePosition(tt.slot, screen, size))
		})
	}
}

func TestLayoutManager_Capacity(t *testing.T) {
	cfg := config.DefaultConfig()
	l := NewLayoutManager(cfg, nil)
	size := image.Pt(376, 186)

	assert.Equal(t, 5, l.Capacity(platform.Rect{Width: 1920, Height: 1080}, size))
	assert.Equal(t, 2, l.Capacity(platform.Rect{Width: 1920, Height: 500}, size))
	// A screen too small for even one toast still shows one
	assert.Equal(t, 1, l.Capacity(platform.Rect{Width: 300, Height: 100}, size))

	cfg.Display.MaxVisible = 3
	assert.Equal(t, 3, l.Capacity(platform.Rect{Width: 1920, Height: 1080}, size))
}

func TestLayoutManager_IsBottom(t *testing.T) {
	cfg := config.DefaultConfig()
	l := NewLayoutManager(cfg, nil)
	assert.True(t, l.IsBottom())

	top := config.DefaultConfig()
	top.Display.Position = string(config.PositionTopCenter)
	l.UpdateConfig(top)
	assert.False(t, l.IsBottom())
}
