// Package detection reduces an edge map to the border of a film frame.
//
// The reducer works on the binary edge maps produced by
// imaging.ExtractEdges. It extracts the outer contours of the edge regions,
// straightens each with Douglas-Peucker simplification, takes the convex
// hull and accepts the first hull that is a quadrilateral enclosing enough
// of the region of interest.
//
// # Contours
//
// FindContours returns only external contours: boundaries of edge regions
// that face the background connected to the image border. The inner side of
// a thick frame border, and anything drawn inside the frame, is nested and
// never reported. This matters because the inner boundary of a frame is
// also a large quadrilateral and would otherwise compete with the outer one.
//
// Contours are ordered by the raster position (top to bottom, left to
// right) of their first pixel, which makes the reducer deterministic.
//
// # Quads
//
// ReduceToQuad returns a Quad that is either empty or holds exactly four
// corners. Not finding a quad is a normal outcome and is not an error.
//
// Example:
//
//	edges, err := imaging.ExtractEdges(frame, roi, imaging.DefaultEdgeOptions(h))
//	if err != nil {
//	    return err
//	}
//	quad := detection.ReduceToQuad(edges, detection.DefaultMinAreaFraction)
//	if quad.Found() {
//	    fmt.Println(quad.Ordered())
//	}
package detection
