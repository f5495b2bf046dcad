package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"github.com/anthonynsimon/bild/clone"
	"github.com/lucasb-eyer/go-colorful"
)

// ToRGBA returns an RGBA copy of img with the same bounds. The copy never
// shares pixel storage with img, even when img is already *image.RGBA.
func ToRGBA(img image.Image) *image.RGBA {
	return clone.AsRGBA(img)
}

// CopyInto copies src into dst when both have the same bounds and returns
// dst; otherwise it returns a fresh copy of src. It lets callers reuse a
// pooled working buffer from one frame to the next.
func CopyInto(dst *image.RGBA, src image.Image) *image.RGBA {
	if dst == nil || dst.Rect != src.Bounds() {
		return ToRGBA(src)
	}
	if s, ok := src.(*image.RGBA); ok && s.Stride == dst.Stride {
		copy(dst.Pix, s.Pix)
		return dst
	}
	draw.Draw(dst, dst.Rect, src, dst.Rect.Min, draw.Src)
	return dst
}

// ParseColor parses a "#RRGGBB" or "#RGB" hex string.
func ParseColor(hex string) (color.RGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// ContrastColor returns black or white, whichever reads better on top of c.
// Lightness is judged in CIE L*a*b* space rather than by raw RGB sums.
func ContrastColor(c color.Color) color.RGBA {
	cf, ok := colorful.MakeColor(c)
	if !ok {
		return color.RGBA{A: 255}
	}
	l, _, _ := cf.Lab()
	if l > 0.6 {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: 255, G: 255, B: 255, A: 255}
}

// EncodePNGBase64 encodes img as PNG and returns it base64 encoded.
func EncodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// SavePNG writes img to path as PNG.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
