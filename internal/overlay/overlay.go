package overlay

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/clone"

	"github.com/ironsheep/filmreader/internal/geom"
)

// Default styles for each request kind.
var (
	DefaultLineStyle = Style{Color: color.RGBA{255, 255, 255, 255}, Thickness: 5, Scale: 1}
	DefaultRectStyle = Style{Color: color.RGBA{255, 255, 255, 255}, Thickness: 3, Scale: 1}
	DefaultTextStyle = Style{Color: color.RGBA{255, 0, 0, 255}, Thickness: 1, Scale: 5}
)

// Style controls how a request is drawn.
type Style struct {
	// Color is the stroke or text colour.
	Color color.RGBA

	// Thickness is the stroke width in pixels. It does not apply to text.
	Thickness int

	// Scale is the text magnification over the 7x13 base font. It only
	// applies to text.
	Scale float64
}

// Option adjusts the style of a single request.
type Option func(*Style)

// WithColor sets the stroke or text colour.
func WithColor(c color.Color) Option {
	return func(s *Style) {
		r, g, b, a := c.RGBA()
		s.Color = color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
	}
}

// WithThickness sets the stroke width. Values below 1 are ignored.
func WithThickness(n int) Option {
	return func(s *Style) {
		if n >= 1 {
			s.Thickness = n
		}
	}
}

// WithScale sets the text magnification. Values of zero or below are
// ignored.
func WithScale(f float64) Option {
	return func(s *Style) {
		if f > 0 {
			s.Scale = f
		}
	}
}

func applyOptions(base Style, opts []Option) Style {
	for _, opt := range opts {
		opt(&base)
	}
	return base
}

type lineRequest struct {
	points geom.Polygon
	style  Style
}

type rectRequest struct {
	rect  image.Rectangle
	style Style
}

type textRequest struct {
	text  string
	pos   image.Point
	style Style
}

// Compositor queues drawing requests for one frame and renders them in a
// single pass.
//
// The zero value is ready to use. A Compositor is not safe for concurrent
// use.
type Compositor struct {
	lines    []lineRequest
	rects    []rectRequest
	texts    []textRequest
	override *image.RGBA
}

// New creates an empty compositor.
func New() *Compositor {
	return &Compositor{}
}

// AddLine queues a closed polyline through points: each point is joined to
// the next and the last back to the first. The points are copied. An empty
// slice is ignored.
func (c *Compositor) AddLine(points geom.Polygon, opts ...Option) {
	if len(points) == 0 {
		return
	}
	c.lines = append(c.lines, lineRequest{
		points: points.Clone(),
		style:  applyOptions(DefaultLineStyle, opts),
	})
}

// AddRect queues the outline of r. A nil r is ignored, so callers can pass
// an optional rectangle straight through.
func (c *Compositor) AddRect(r *image.Rectangle, opts ...Option) {
	if r == nil {
		return
	}
	c.rects = append(c.rects, rectRequest{
		rect:  r.Canon(),
		style: applyOptions(DefaultRectStyle, opts),
	})
}

// AddText queues text with its baseline starting at pos.
func (c *Compositor) AddText(text string, pos image.Point, opts ...Option) {
	if text == "" {
		return
	}
	c.texts = append(c.texts, textRequest{
		text:  text,
		pos:   pos,
		style: applyOptions(DefaultTextStyle, opts),
	})
}

// OverrideImage makes the next render draw onto a copy of img instead of
// the frame passed to RenderAndClear. The copy is taken now, so later
// changes to img do not affect the render. A nil img clears the override.
func (c *Compositor) OverrideImage(img image.Image) {
	if img == nil {
		c.override = nil
		return
	}
	c.override = clone.AsRGBA(img)
}

// ClearOverride drops a pending override.
func (c *Compositor) ClearOverride() {
	c.override = nil
}

// HasOverride reports whether an override is pending.
func (c *Compositor) HasOverride() bool {
	return c.override != nil
}

// Pending returns the number of queued drawing requests, not counting the
// override.
func (c *Compositor) Pending() int {
	return len(c.lines) + len(c.rects) + len(c.texts)
}

// RenderAndClear draws every queued request and empties the queues.
//
// The target is the override when one is set, otherwise fallback. An
// *image.RGBA fallback is drawn on in place and returned; any other image
// type is copied to RGBA first and left untouched. Requests are drawn in a
// fixed order: polylines, then text, then rectangles.
//
// The override is consumed by the render: the next frame draws on its own
// input unless OverrideImage is called again. RenderAndClear returns nil
// only when there is neither an override nor a fallback.
func (c *Compositor) RenderAndClear(fallback image.Image) *image.RGBA {
	defer c.reset()

	var dst *image.RGBA
	switch {
	case c.override != nil:
		dst = c.override
	case fallback == nil:
		return nil
	default:
		if rgba, ok := fallback.(*image.RGBA); ok {
			dst = rgba
		} else {
			dst = clone.AsRGBA(fallback)
		}
	}

	for _, l := range c.lines {
		drawPolyline(dst, l.points, l.style)
	}
	for _, t := range c.texts {
		drawText(dst, t.text, t.pos, t.style)
	}
	for _, r := range c.rects {
		drawRect(dst, r.rect, r.style)
	}
	return dst
}

func (c *Compositor) reset() {
	clear(c.lines)
	clear(c.rects)
	clear(c.texts)
	c.lines = c.lines[:0]
	c.rects = c.rects[:0]
	c.texts = c.texts[:0]
	c.override = nil
}
