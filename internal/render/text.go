package render

import (
	"image"
	"image/color"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const ellipsis = "…"

// Font sizes in pixels (72 DPI).
const (
	headerSize = 12
	titleSize  = 15
	bodySize   = 13
	closeSize  = 13
)

type faceSet struct {
	header font.Face
	title  font.Face
	body   font.Face
	close  font.Face
}

// faceCache lazily builds the Go font faces. opentype faces keep glyph
// buffers internally, so callers hold the lock while drawing.
type faceCache struct {
	sync.Mutex
	once  sync.Once
	faces faceSet
}

var fonts faceCache

func (c *faceCache) get() faceSet {
	c.once.Do(func() {
		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			panic("render: embedded Go Regular font is invalid: " + err.Error())
		}
		bold, err := opentype.Parse(gobold.TTF)
		if err != nil {
			panic("render: embedded Go Bold font is invalid: " + err.Error())
		}
		c.faces = faceSet{
			header: mustFace(regular, headerSize),
			title:  mustFace(bold, titleSize),
			body:   mustFace(regular, bodySize),
			close:  mustFace(regular, closeSize),
		}
	})
	return c.faces
}

func mustFace(f *opentype.Font, size float64) font.Face {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		panic("render: cannot build font face: " + err.Error())
	}
	return face
}

func lineHeight(face font.Face) int {
	return face.Metrics().Height.Ceil()
}

// drawText rasterises s with its line box at r, clipped to clip.
func (f *Frame) drawText(face font.Face, kind TextKind, s string, r, clip image.Rectangle, c color.RGBA) {
	m := face.Metrics()
	// Centre the ascent+descent box vertically in the line box.
	textH := (m.Ascent + m.Descent).Ceil()
	baseline := r.Min.Y + (r.Dy()-textH)/2 + m.Ascent.Ceil()

	dst, ok := f.Image.SubImage(clip).(*image.RGBA)
	if ok && !dst.Bounds().Empty() {
		d := font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(c),
			Face: face,
			Dot:  fixed.P(r.Min.X, baseline),
		}
		d.DrawString(s)
	}

	f.Texts = append(f.Texts, TextRun{Kind: kind, Text: s, Rect: r, Color: c})
}

// drawLine draws a single line, ellipsised to fit r.
func (f *Frame) drawLine(face font.Face, kind TextKind, s string, r image.Rectangle, c color.RGBA) {
	s = strings.Join(strings.Fields(s), " ")
	s = Ellipsize(face, s, r.Dx())
	f.drawText(face, kind, s, r, r, c)
}

// drawCentered draws s centred in r.
func (f *Frame) drawCentered(face font.Face, kind TextKind, s string, r image.Rectangle, c color.RGBA) {
	w := font.MeasureString(face, s).Ceil()
	x := r.Min.X + (r.Dx()-w)/2
	line := image.Rect(x, r.Min.Y, x+w, r.Max.Y)
	f.drawText(face, kind, s, line, r, c)
}

// drawParagraphs word-wraps body into r. Lines that do not fit are dropped
// and the last visible line gets an ellipsis.
func (f *Frame) drawParagraphs(face font.Face, body string, r image.Rectangle, c color.RGBA) {
	lh := lineHeight(face)
	if lh <= 0 || r.Dy() < lh {
		return
	}
	maxLines := r.Dy() / lh

	lines := Wrap(face, body, r.Dx())
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		last := lines[maxLines-1]
		lines[maxLines-1] = Ellipsize(face, last+ellipsis, r.Dx())
	}

	for i, line := range lines {
		box := image.Rect(r.Min.X, r.Min.Y+i*lh, r.Max.X, r.Min.Y+(i+1)*lh)
		f.drawText(face, TextBody, line, box, r, c)
	}
}

// Ellipsize shortens s until it fits in width pixels, appending "…".
func Ellipsize(face font.Face, s string, width int) string {
	if font.MeasureString(face, s).Ceil() <= width {
		return s
	}
	s = strings.TrimSuffix(s, ellipsis)
	for len(s) > 0 {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
		candidate := strings.TrimRight(s, " ") + ellipsis
		if font.MeasureString(face, candidate).Ceil() <= width {
			return candidate
		}
	}
	return ""
}

// Wrap breaks text into lines no wider than width pixels. Newlines start
// new paragraphs; words longer than a line are split by rune.
func Wrap(face font.Face, text string, width int) []string {
	if width <= 0 {
		return nil
	}
	var lines []string
	space := font.MeasureString(face, " ").Ceil()

	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		var cur strings.Builder
		curW := 0
		for _, word := range words {
			ww := font.MeasureString(face, word).Ceil()

			for ww > width && word != "" {
				// Flush the current line, then hard-break the word.
				if cur.Len() > 0 {
					lines = append(lines, cur.String())
					cur.Reset()
					curW = 0
				}
				head, tail := splitToWidth(face, word, width)
				lines = append(lines, head)
				word = tail
				ww = font.MeasureString(face, word).Ceil()
			}
			if word == "" {
				continue
			}

			switch {
			case cur.Len() == 0:
				cur.WriteString(word)
				curW = ww
			case curW+space+ww <= width:
				cur.WriteByte(' ')
				cur.WriteString(word)
				curW += space + ww
			default:
				lines = append(lines, cur.String())
				cur.Reset()
				cur.WriteString(word)
				curW = ww
			}
		}
		if cur.Len() > 0 {
			lines = append(lines, cur.String())
		}
	}

	// Trailing blank paragraphs only waste body lines.
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// splitToWidth returns the longest rune prefix of word that fits in width
// (at least one rune) and the remainder.
func splitToWidth(face font.Face, word string, width int) (string, string) {
	end := 0
	for i, r := range word {
		next := i + utf8.RuneLen(r)
		if end > 0 && font.MeasureString(face, word[:next]).Ceil() > width {
			break
		}
		end = next
	}
	return word[:end], word[end:]
}
