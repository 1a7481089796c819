package render

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/jmylchreest/retrotoast/internal/model"
)

// drawIcon scales icon into slot. A missing icon leaves the slot empty;
// a malformed one is replaced by a placeholder square.
func drawIcon(img *image.RGBA, slot image.Rectangle, icon *model.Icon, placeholder color.RGBA) error {
	if icon == nil {
		return nil
	}
	if err := icon.Validate(); err != nil {
		draw.Draw(img, slot.Inset(1), image.NewUniform(placeholder), image.Point{}, draw.Src)
		return &DegradedError{Message: "icon replaced by placeholder", Cause: err}
	}

	src := IconImage(icon)
	xdraw.CatmullRom.Scale(img, slot, src, src.Bounds(), xdraw.Over, nil)
	return nil
}

// IconImage wraps the icon buffer as a straight-alpha image without copying.
// The icon must already be valid.
func IconImage(icon *model.Icon) *image.NRGBA {
	return &image.NRGBA{
		Pix:    icon.Pix,
		Stride: icon.Width * 4,
		Rect:   image.Rect(0, 0, icon.Width, icon.Height),
	}
}
