// Package geom provides the geometric primitives shared by the frame
// detection pipeline: points, polygons and region-of-interest rectangles,
// plus the pure polygon operations (area, simplification, convex hull) the
// contour reducer is built from.
//
// # Coordinate System
//
// Coordinates follow the image convention used throughout the module:
// origin at the top-left corner, X increasing rightward and Y increasing
// downward. Rectangles are the standard library's image.Rectangle, with Min
// inclusive and Max exclusive.
//
// All types here are plain values. Functions never modify their inputs.
package geom

import (
	"image"
	"math"
)

// Point is a 2D coordinate in pixel space.
//
// Points are floating-point so that simplification and hull steps can work
// without repeated rounding; integer pixel positions convert exactly.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt returns the Point for an integer pixel position.
func Pt(x, y int) Point {
	return Point{X: float64(x), Y: float64(y)}
}

// Image rounds p to the nearest integer pixel position.
func (p Point) Image() image.Point {
	return image.Point{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
}

// Sub returns the vector p-q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Polygon is an ordered sequence of points. Order defines edge connectivity:
// each point connects to the next and the last connects back to the first.
// An empty Polygon is valid and means "nothing detected".
type Polygon []Point

// Clone returns a copy of pg that shares no storage with it.
func (pg Polygon) Clone() Polygon {
	if pg == nil {
		return nil
	}
	out := make(Polygon, len(pg))
	copy(out, pg)
	return out
}

// Area returns the absolute enclosed area of pg using the shoelace formula.
// Polygons with fewer than three points have zero area.
func (pg Polygon) Area() float64 {
	if len(pg) < 3 {
		return 0
	}
	var sum float64
	for i := range pg {
		j := (i + 1) % len(pg)
		sum += pg[i].X*pg[j].Y - pg[j].X*pg[i].Y
	}
	return math.Abs(sum) / 2
}

// Bounds returns the smallest integer rectangle containing every point of pg.
// The rectangle's Max is exclusive, so a single point yields a 1x1 rectangle.
func (pg Polygon) Bounds() image.Rectangle {
	if len(pg) == 0 {
		return image.Rectangle{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pg {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Floor(maxX))+1, int(math.Floor(maxY))+1)
}

// Contains reports whether p lies strictly inside pg (even-odd rule).
func (pg Polygon) Contains(p Point) bool {
	inside := false
	for i, j := 0, len(pg)-1; i < len(pg); j, i = i, i+1 {
		a, b := pg[i], pg[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// Image converts pg to integer pixel positions.
func (pg Polygon) Image() []image.Point {
	out := make([]image.Point, len(pg))
	for i, p := range pg {
		out[i] = p.Image()
	}
	return out
}

// FromImage converts integer pixel positions to a Polygon.
func FromImage(pts []image.Point) Polygon {
	out := make(Polygon, len(pts))
	for i, p := range pts {
		out[i] = Pt(p.X, p.Y)
	}
	return out
}

// ValidROI reports whether r is a usable region of interest for an image with
// the given bounds: non-empty and fully contained.
func ValidROI(r, bounds image.Rectangle) bool {
	return r.Dx() > 0 && r.Dy() > 0 && r.In(bounds)
}

// cross returns the z component of (a-o) x (b-o).
func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}
