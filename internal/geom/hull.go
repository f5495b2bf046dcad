package geom

import "sort"

// ConvexHull returns the convex hull of pts using Andrew's monotone chain.
//
// Duplicate and collinear points are dropped, so a hull only contains true
// corners. The hull starts at the point with the smallest X (then smallest Y)
// and runs counter-clockwise in a Y-up frame, which appears clockwise on
// screen. Callers should not depend on the winding.
//
// Fewer than three distinct points, or points that are all collinear, yield
// a hull with fewer than three vertices.
func ConvexHull(pts Polygon) Polygon {
	if len(pts) == 0 {
		return Polygon{}
	}
	sorted := pts.Clone()
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	uniq := sorted[:1]
	for _, p := range sorted[1:] {
		if p != uniq[len(uniq)-1] {
			uniq = append(uniq, p)
		}
	}
	if len(uniq) < 3 {
		return uniq.Clone()
	}

	hull := make(Polygon, 0, 2*len(uniq))
	// Lower chain
	for _, p := range uniq {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	// Upper chain
	lower := len(hull) + 1
	for i := len(uniq) - 2; i >= 0; i-- {
		p := uniq[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	// The last point repeats the first.
	return hull[:len(hull)-1]
}
