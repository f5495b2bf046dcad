package overlay

import (
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/ironsheep/filmreader/internal/geom"
)

// joinSides is the number of sides of the polygon approximating a round
// line join.
const joinSides = 16

// drawPolyline strokes the closed polyline through pts.
func drawPolyline(dst *image.RGBA, pts geom.Polygon, s Style) {
	src := image.NewUniform(s.Color)
	hw := float64(s.Thickness) / 2

	if len(pts) == 1 {
		fillPolygon(dst, disk(pts[0], hw), src)
		return
	}
	for i := range pts {
		a, b := pts[i], pts[(i+1)%len(pts)]
		if quad := segment(a, b, hw); quad != nil {
			fillPolygon(dst, quad, src)
		}
		fillPolygon(dst, disk(a, hw), src)
	}
}

// segment returns the rectangle of half-width hw around the segment ab, or
// nil for a zero-length segment.
func segment(a, b geom.Point, hw float64) geom.Polygon {
	d := b.Sub(a)
	length := math.Hypot(d.X, d.Y)
	if length == 0 {
		return nil
	}
	nx, ny := -d.Y/length*hw, d.X/length*hw
	return geom.Polygon{
		{X: a.X + nx, Y: a.Y + ny},
		{X: b.X + nx, Y: b.Y + ny},
		{X: b.X - nx, Y: b.Y - ny},
		{X: a.X - nx, Y: a.Y - ny},
	}
}

// disk approximates a filled circle of radius r around c.
func disk(c geom.Point, r float64) geom.Polygon {
	pts := make(geom.Polygon, joinSides)
	for i := range pts {
		theta := 2 * math.Pi * float64(i) / joinSides
		pts[i] = geom.Point{X: c.X + r*math.Cos(theta), Y: c.Y + r*math.Sin(theta)}
	}
	return pts
}

// fillPolygon fills poly with src, anti-aliased.
//
// The path is rasterized into a mask covering its own bounding box, so the
// rasterizer never sees coordinates outside its area, and the mask is then
// composited onto the part of dst it overlaps.
func fillPolygon(dst *image.RGBA, poly geom.Polygon, src image.Image) {
	if len(poly) < 3 {
		return
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range poly {
		minX, minY = math.Min(minX, p.X), math.Min(minY, p.Y)
		maxX, maxY = math.Max(maxX, p.X), math.Max(maxY, p.Y)
	}
	box := image.Rect(int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX))+1, int(math.Ceil(maxY))+1)
	visible := box.Intersect(dst.Bounds())
	if visible.Empty() {
		return
	}

	z := vector.NewRasterizer(box.Dx(), box.Dy())
	ox, oy := float64(box.Min.X), float64(box.Min.Y)
	z.MoveTo(float32(poly[0].X-ox), float32(poly[0].Y-oy))
	for _, p := range poly[1:] {
		z.LineTo(float32(p.X-ox), float32(p.Y-oy))
	}
	z.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, box.Dx(), box.Dy()))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	draw.DrawMask(dst, visible, src, image.Point{}, mask, visible.Min.Sub(box.Min), draw.Over)
}

// drawRect outlines r with bands of the style's thickness centred on the
// rectangle's border pixels.
func drawRect(dst *image.RGBA, r image.Rectangle, s Style) {
	if r.Empty() {
		return
	}
	src := image.NewUniform(s.Color)
	lo := s.Thickness / 2
	hi := s.Thickness - lo
	x0, y0 := r.Min.X, r.Min.Y
	x1, y1 := r.Max.X-1, r.Max.Y-1

	bands := [4]image.Rectangle{
		image.Rect(x0-lo, y0-lo, x1+hi, y0+hi), // top
		image.Rect(x0-lo, y1-lo, x1+hi, y1+hi), // bottom
		image.Rect(x0-lo, y0-lo, x0+hi, y1+hi), // left
		image.Rect(x1-lo, y0-lo, x1+hi, y1+hi), // right
	}
	for _, b := range bands {
		draw.Draw(dst, b, src, image.Point{}, draw.Over)
	}
}

// drawText renders text with its baseline starting at pos.
func drawText(dst *image.RGBA, text string, pos image.Point, s Style) {
	face := basicfont.Face7x13
	metrics := face.Metrics()
	ascent, descent := metrics.Ascent.Ceil(), metrics.Descent.Ceil()

	d := &font.Drawer{Face: face}
	width := d.MeasureString(text).Ceil()
	if width <= 0 {
		return
	}

	glyphs := image.NewAlpha(image.Rect(0, 0, width, ascent+descent))
	d.Dst = glyphs
	d.Src = image.Opaque
	d.Dot = fixed.P(0, ascent)
	d.DrawString(text)

	sw := max(1, int(math.Round(float64(width)*s.Scale)))
	sh := max(1, int(math.Round(float64(ascent+descent)*s.Scale)))
	scaled := imaging.Resize(glyphs, sw, sh, imaging.NearestNeighbor)

	top := pos.Y - int(math.Round(float64(ascent)*s.Scale))
	r := image.Rect(pos.X, top, pos.X+sw, top+sh)
	draw.DrawMask(dst, r, image.NewUniform(s.Color), image.Point{}, scaled, image.Point{}, draw.Over)
}
