// Package icon turns image files and raw pixel buffers into model.Icon values.
package icon

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergeymakinen/go-ico"
	xdraw "golang.org/x/image/draw"

	"github.com/jmylchreest/retrotoast/internal/model"
)

// MaxSize bounds the longest edge of a decoded icon. Larger images are
// scaled down on load; the renderer scales again to the configured slot.
const MaxSize = 128

// ErrRawFormat is returned for raw buffers in a layout that cannot be read.
var ErrRawFormat = errors.New("unsupported raw image layout")

// Load decodes an image file. ICO files choose the entry closest to want
// pixels; other formats go through image.Decode.
func Load(path string, want int) (*model.Icon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open icon: %w", err)
	}
	defer func() { _ = f.Close() }()

	if strings.EqualFold(filepath.Ext(path), ".ico") {
		return decodeICO(f, want)
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode icon %s: %w", path, err)
	}
	return FromImage(img), nil
}

func decodeICO(r io.Reader, want int) (*model.Icon, error) {
	images, err := ico.DecodeAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ico: %w", err)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("failed to decode ico: no images")
	}
	return FromImage(closest(images, want)), nil
}

// closest picks the smallest image at least want pixels wide, or the
// largest one when all are smaller.
func closest(images []image.Image, want int) image.Image {
	var best image.Image
	for _, img := range images {
		w := img.Bounds().Dx()
		switch {
		case best == nil:
			best = img
		case w >= want && (best.Bounds().Dx() < want || w < best.Bounds().Dx()):
			best = img
		case w < want && best.Bounds().Dx() < want && w > best.Bounds().Dx():
			best = img
		}
	}
	return best
}

// FromImage converts any image into a straight-alpha icon, scaling it down
// when it exceeds MaxSize.
func FromImage(img image.Image) *model.Icon {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > MaxSize || h > MaxSize {
		if w >= h {
			w, h = MaxSize, max(1, h*MaxSize/w)
		} else {
			w, h = max(1, w*MaxSize/h), MaxSize
		}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	} else {
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	}
	return &model.Icon{Pix: dst.Pix, Width: w, Height: h}
}

// Raw describes a packed pixel buffer as sent in the freedesktop
// image-data hint.
type Raw struct {
	Width         int
	Height        int
	Rowstride     int
	HasAlpha      bool
	BitsPerSample int
	Channels      int
	Data          []byte
}

// FromRaw converts an 8-bit RGB or RGBA buffer into an icon.
func FromRaw(r Raw) (*model.Icon, error) {
	if r.Width <= 0 || r.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", model.ErrIconDimension, r.Width, r.Height)
	}
	if r.BitsPerSample != 8 {
		return nil, fmt.Errorf("%w: %d bits per sample", ErrRawFormat, r.BitsPerSample)
	}
	want := 3
	if r.HasAlpha {
		want = 4
	}
	if r.Channels != want {
		return nil, fmt.Errorf("%w: %d channels with alpha=%t", ErrRawFormat, r.Channels, r.HasAlpha)
	}
	if r.Rowstride < r.Width*r.Channels {
		return nil, fmt.Errorf("%w: rowstride %d too small", ErrRawFormat, r.Rowstride)
	}
	// The last row may omit its padding.
	if need := (r.Height-1)*r.Rowstride + r.Width*r.Channels; len(r.Data) < need {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", model.ErrIconSize, need, len(r.Data))
	}

	img := image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := range r.Height {
		src := r.Data[y*r.Rowstride:]
		dst := img.Pix[y*img.Stride:]
		for x := range r.Width {
			s, d := src[x*r.Channels:], dst[x*4:]
			d[0], d[1], d[2] = s[0], s[1], s[2]
			if r.HasAlpha {
				d[3] = s[3]
			} else {
				d[3] = 0xff
			}
		}
	}
	return FromImage(img), nil
}
