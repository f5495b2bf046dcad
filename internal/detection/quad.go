package detection

import (
	"image"
	"sort"

	"github.com/ironsheep/filmreader/internal/geom"
	"github.com/ironsheep/filmreader/internal/imaging"
)

// SimplifyTolerance is the Douglas-Peucker tolerance, in pixels, used to
// straighten a detected border before hulling. It also bounds how far a
// reported corner may sit from the true one.
const SimplifyTolerance = 10.0

// DefaultMinAreaFraction is the smallest share of the ROI a border must
// enclose to be accepted.
const DefaultMinAreaFraction = 0.25

// Quad is the result of one reduction: either four corner points or nothing.
//
// The points come straight from the convex hull, so their winding is not
// specified. Use Ordered for a canonical order.
type Quad struct {
	// Points holds the four corners, or is empty when no quad was found.
	Points geom.Polygon `json:"points"`

	// Area is the area enclosed by the corners.
	Area float64 `json:"area"`

	// ContourArea is the area of the contour the quad was reduced from.
	ContourArea float64 `json:"contour_area"`
}

// Found reports whether q holds a detected quad.
func (q Quad) Found() bool {
	return len(q.Points) == 4
}

// Bounds returns the integer bounding box of the corners, or an empty
// rectangle when nothing was found.
func (q Quad) Bounds() image.Rectangle {
	if !q.Found() {
		return image.Rectangle{}
	}
	return q.Points.Bounds()
}

// Ordered returns a copy of the corners ordered top-left, top-right,
// bottom-right, bottom-left. It returns nil when nothing was found.
func (q Quad) Ordered() geom.Polygon {
	if !q.Found() {
		return nil
	}
	pts := q.Points.Clone()

	// Top pair first, then sort each pair by X.
	sort.Slice(pts, func(i, j int) bool { return pts[i].Y < pts[j].Y })
	top, bottom := pts[:2], pts[2:]
	if top[0].X > top[1].X {
		top[0], top[1] = top[1], top[0]
	}
	if bottom[0].X < bottom[1].X {
		bottom[0], bottom[1] = bottom[1], bottom[0]
	}
	return geom.Polygon{top[0], top[1], bottom[0], bottom[1]}
}

// ReduceToQuad finds the frame border in an edge map.
//
// Parameters:
//   - edges: Edge map from imaging.ExtractEdges. A nil map yields no quad.
//   - minAreaFraction: Minimum contour area as a fraction of the edge map's
//     ROI area (DefaultMinAreaFraction is typical).
//
// Returns the first accepted quad, or an empty Quad.
//
// # Algorithm
//
//  1. Outer contours are extracted with FindContours.
//  2. Contours with fewer than 4 points, or enclosing less than
//     minAreaFraction of the ROI, are skipped.
//  3. Each remaining contour is simplified with Douglas-Peucker at
//     SimplifyTolerance, collapsing jitter and slight curvature into
//     straight sides.
//  4. The convex hull of the simplified polygon is computed.
//  5. The hull is accepted only if it has exactly four vertices.
//  6. The search stops at the first accepted contour, in FindContours order.
//
// Missing a frame is normal (the border is not yet in view, or occluded)
// and is not reported as an error.
func ReduceToQuad(edges *imaging.EdgeMap, minAreaFraction float64) Quad {
	if edges == nil {
		return Quad{}
	}
	return ReduceContours(FindContours(edges), edges.ROI, minAreaFraction)
}

// ReduceContours applies the area, simplification and hull gates of
// ReduceToQuad to already extracted contours.
func ReduceContours(contours []geom.Polygon, roi image.Rectangle, minAreaFraction float64) Quad {
	minArea := minAreaFraction * float64(roi.Dx()*roi.Dy())

	for _, contour := range contours {
		if len(contour) < 4 {
			continue
		}
		area := contour.Area()
		if area < minArea {
			continue
		}

		simplified := geom.Simplify(contour, SimplifyTolerance, true)
		if len(simplified) < 3 {
			continue
		}

		hull := geom.ConvexHull(simplified)
		if len(hull) != 4 {
			continue
		}

		return Quad{
			Points:      hull,
			Area:        hull.Area(),
			ContourArea: area,
		}
	}
	return Quad{}
}
