package render

import (
	"image"

	"github.com/jmylchreest/retrotoast/internal/model"
)

// Classic card geometry.
const (
	DefaultWidth    = 360
	DefaultHeight   = 170
	DefaultMargin   = 16
	DefaultIconSize = 16
)

// Layout is the geometry of one toast window. All rectangles are in
// window-local pixels, with the card inset by Padding on every side to
// leave room for the drop shadow.
type Layout struct {
	Width    int // Card width
	Height   int // Card height
	Margin   int
	IconSize int
	Padding  int // Shadow padding; 0 without a compositor
}

// DefaultLayout returns the classic 360x170 layout without shadow padding.
func DefaultLayout() Layout {
	return Layout{
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		Margin:   DefaultMargin,
		IconSize: DefaultIconSize,
	}
}

// Size returns the full window size including shadow padding.
func (l Layout) Size() image.Point {
	return image.Pt(l.Width+2*l.Padding, l.Height+2*l.Padding)
}

// Bounds returns the window rectangle at the origin.
func (l Layout) Bounds() image.Rectangle {
	return image.Rectangle{Max: l.Size()}
}

// Card returns the opaque card inside the shadow padding.
func (l Layout) Card() image.Rectangle {
	return image.Rect(l.Padding, l.Padding, l.Padding+l.Width, l.Padding+l.Height)
}

// IconRect is the app icon slot in the top-left corner.
func (l Layout) IconRect() image.Rectangle {
	o := l.Card().Min
	return image.Rect(o.X+l.Margin, o.Y+l.Margin, o.X+l.Margin+l.IconSize, o.Y+l.Margin+l.IconSize)
}

// CloseRect is the close control in the top-right corner.
func (l Layout) CloseRect() image.Rectangle {
	c := l.Card()
	return image.Rect(c.Max.X-l.Margin-l.IconSize, c.Min.Y+l.Margin, c.Max.X-l.Margin, c.Min.Y+l.Margin+l.IconSize)
}

// HeaderRect holds the app name and timestamp, between icon and close control.
func (l Layout) HeaderRect() image.Rectangle {
	icon, closeBtn := l.IconRect(), l.CloseRect()
	gap := l.Margin / 4
	return image.Rect(icon.Max.X+gap, icon.Min.Y, closeBtn.Min.X-gap, icon.Max.Y)
}

// TitleRect is the single bold title line below the header. It never
// extends into the bottom margin.
func (l Layout) TitleRect() image.Rectangle {
	c := l.Card()
	top := l.IconRect().Max.Y + l.Margin/2
	bottom := min(top+l.IconSize+l.Margin/2, c.Max.Y-l.Margin)
	return band(c.Min.X+l.Margin, top, c.Max.X-l.Margin, bottom)
}

// BodyRect is the wrapped body text area filling the rest of the card.
// It is empty when the card is too short for a body.
func (l Layout) BodyRect() image.Rectangle {
	c := l.Card()
	top := l.TitleRect().Max.Y + l.Margin/4
	return band(c.Min.X+l.Margin, top, c.Max.X-l.Margin, c.Max.Y-l.Margin)
}

// band builds a rectangle without letting image.Rect swap inverted
// edges; a bottom above top gives a zero-height rectangle at top.
func band(x0, top, x1, bottom int) image.Rectangle {
	bottom = max(bottom, top)
	x1 = max(x1, x0)
	return image.Rectangle{Min: image.Pt(x0, top), Max: image.Pt(x1, bottom)}
}

// closeHitRect grows the close control a little so the glyph is easy to hit.
func (l Layout) closeHitRect() image.Rectangle {
	return l.CloseRect().Inset(-l.Margin / 4).Intersect(l.Card())
}

// HitTest classifies a window-local point. Points in the shadow padding
// or outside the window are HoverNone.
func (l Layout) HitTest(x, y int) model.Hover {
	p := image.Pt(x, y)
	switch {
	case !p.In(l.Card()):
		return model.HoverNone
	case p.In(l.closeHitRect()):
		return model.HoverClose
	default:
		return model.HoverBody
	}
}
