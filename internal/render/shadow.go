package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/jmylchreest/retrotoast/internal/theme"
)

// drawShadow paints a soft shadow of the card into the padding, offset
// slightly downward. The blur is three box passes, which approximates a
// gaussian closely enough at these radii.
func drawShadow(img *image.RGBA, l Layout, p theme.Palette) {
	if p.ShadowOpacity <= 0 {
		return
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	mask := make([]float32, w*h)
	card := l.Card().Add(image.Pt(0, l.Padding/4)).Intersect(b)
	for y := card.Min.Y; y < card.Max.Y; y++ {
		for x := card.Min.X; x < card.Max.X; x++ {
			mask[y*w+x] = 1
		}
	}

	radius := max(1, l.Padding/3)
	tmp := make([]float32, w*h)
	for range 3 {
		boxBlur(mask, tmp, w, h, radius, true)
		boxBlur(tmp, mask, w, h, radius, false)
	}

	alpha := image.NewAlpha(b)
	for i, v := range mask {
		alpha.Pix[i] = uint8(min(1, v*float32(p.ShadowOpacity))*255 + 0.5)
	}

	sc := p.Shadow
	sc.A = 0xff
	draw.DrawMask(img, b, image.NewUniform(color.RGBA{R: sc.R, G: sc.G, B: sc.B, A: sc.A}), image.Point{}, alpha, b.Min, draw.Over)
}

// boxBlur runs a 1D running-sum blur along rows (horizontal) or columns.
func boxBlur(src, dst []float32, w, h, r int, horizontal bool) {
	n, lines := w, h
	if !horizontal {
		n, lines = h, w
	}
	at := func(line, i int) int {
		if horizontal {
			return line*w + i
		}
		return i*w + line
	}
	norm := 1 / float32(2*r+1)

	for line := range lines {
		var sum float32
		for i := -r; i <= r; i++ {
			if i >= 0 && i < n {
				sum += src[at(line, i)]
			}
		}
		for i := range n {
			dst[at(line, i)] = sum * norm
			if out := i - r; out >= 0 {
				sum -= src[at(line, out)]
			}
			if in := i + r + 1; in < n {
				sum += src[at(line, in)]
			}
		}
	}
}
