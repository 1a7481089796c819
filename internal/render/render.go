// Package render draws a toast card into an RGBA frame.
// Rendering is stateless: the same inputs always produce the same frame.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/retrotoast/internal/model"
	"github.com/jmylchreest/retrotoast/internal/theme"
)

// Content is the text and icon drawn on the card.
type Content struct {
	AppName string
	Title   string
	Body    string
	Icon    *model.Icon
	Created time.Time // Zero hides the relative timestamp
}

// ContentFrom extracts the drawable parts of a notification.
func ContentFrom(n model.Notification, created time.Time) Content {
	return Content{
		AppName: n.AppName,
		Title:   n.Title,
		Body:    n.Body,
		Icon:    n.Icon,
		Created: created,
	}
}

// Options control how a frame is drawn.
type Options struct {
	Palette theme.Palette
	Shadow  bool      // Draw a drop shadow into Layout.Padding
	Now     time.Time // Reference for the relative timestamp; zero uses time.Now
}

// TextKind identifies which part of the card a text run belongs to.
type TextKind int

const (
	TextHeader TextKind = iota
	TextTitle
	TextBody
	TextClose
)

// TextRun is one line of text as drawn. Adapters that cannot show
// pixels (the terminal) lay out these instead.
type TextRun struct {
	Kind  TextKind
	Text  string
	Rect  image.Rectangle // Line box in window-local pixels
	Color color.RGBA
}

// Frame is a fully drawn toast window.
type Frame struct {
	// Image is premultiplied RGBA covering Layout.Bounds().
	Image *image.RGBA
	Texts []TextRun
	Hover model.Hover
}

// Render draws the card for content in the given hover state. A malformed
// icon is replaced by a placeholder and reported as a *DegradedError
// alongside a complete frame; callers should still present the frame.
func Render(layout Layout, content Content, hover model.Hover, opts Options) (*Frame, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	p := opts.Palette

	img := image.NewRGBA(layout.Bounds())
	f := &Frame{Image: img, Hover: hover}

	if opts.Shadow && layout.Padding > 0 {
		drawShadow(img, layout, p)
	}

	bg := p.Background
	if hover == model.HoverBody {
		bg = p.BodyHover()
	}
	card := layout.Card()
	draw.Draw(img, card, image.NewUniform(bg), image.Point{}, draw.Src)
	strokeRect(img, card, p.Border)

	var degraded error
	if err := drawIcon(img, layout.IconRect(), content.Icon, p.Placeholder); err != nil {
		degraded = err
	}

	fonts.Lock()
	defer fonts.Unlock()
	fc := fonts.get()

	header := content.AppName
	if !content.Created.IsZero() {
		rel := humanize.RelTime(content.Created, opts.Now, "ago", "from now")
		if header != "" {
			header += " · " + rel
		} else {
			header = rel
		}
	}
	if header != "" {
		f.drawLine(fc.header, TextHeader, header, layout.HeaderRect(), p.AppName)
	}

	if title := layout.TitleRect(); content.Title != "" && !title.Empty() {
		f.drawLine(fc.title, TextTitle, content.Title, title, p.Title)
	}

	if content.Body != "" {
		f.drawParagraphs(fc.body, content.Body, layout.BodyRect(), p.Body)
	}

	closeRect := layout.CloseRect()
	glyph := p.Close
	if hover == model.HoverClose {
		draw.Draw(img, closeRect, image.NewUniform(p.CloseHoverBackground), image.Point{}, draw.Src)
		glyph = p.CloseHover
	}
	f.drawCentered(fc.close, TextClose, "x", closeRect, glyph)

	if degraded != nil {
		return f, degraded
	}
	return f, nil
}

func strokeRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	u := image.NewUniform(c)
	draw.Draw(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), u, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), u, image.Point{}, draw.Src)
}
