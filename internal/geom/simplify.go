package geom

import "math"

// Simplify reduces pts with the Douglas-Peucker algorithm: every discarded
// point lies within epsilon of the segment that replaces it.
//
// When closed is true pts is treated as a ring. The ring is split at its
// first point and the point farthest from it, and each half is simplified
// independently, so both of those points always survive. When closed is
// false the first and last points are kept.
//
// A non-positive epsilon returns a copy of pts.
func Simplify(pts Polygon, epsilon float64, closed bool) Polygon {
	n := len(pts)
	if n < 3 || epsilon <= 0 {
		return pts.Clone()
	}

	if !closed {
		keep := make([]bool, n)
		douglasPeucker(pts, 0, n-1, epsilon, keep)
		return collect(pts, keep)
	}

	// Ring: seq[n] repeats seq[0] so the second half can close the loop.
	seq := make(Polygon, n+1)
	copy(seq, pts)
	seq[n] = pts[0]

	far, farDist := 0, 0.0
	for i := 1; i < n; i++ {
		if d := pts[0].Dist(pts[i]); d > farDist {
			far, farDist = i, d
		}
	}
	if far == 0 {
		// All points coincide.
		return Polygon{pts[0]}
	}

	keep := make([]bool, n+1)
	douglasPeucker(seq, 0, far, epsilon, keep)
	douglasPeucker(seq, far, n, epsilon, keep)
	return collect(seq[:n], keep[:n])
}

// douglasPeucker marks the points of pts[first..last] that must be kept.
// It uses an explicit stack so long contours cannot exhaust the goroutine stack.
func douglasPeucker(pts Polygon, first, last int, epsilon float64, keep []bool) {
	keep[first] = true
	keep[last] = true

	type span struct{ a, b int }
	stack := []span{{first, last}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.b-s.a < 2 {
			continue
		}

		idx, maxDist := -1, 0.0
		for i := s.a + 1; i < s.b; i++ {
			if d := segmentDistance(pts[i], pts[s.a], pts[s.b]); d > maxDist {
				idx, maxDist = i, d
			}
		}
		if idx < 0 || maxDist <= epsilon {
			continue
		}
		keep[idx] = true
		stack = append(stack, span{s.a, idx}, span{idx, s.b})
	}
}

func collect(pts Polygon, keep []bool) Polygon {
	out := make(Polygon, 0, 8)
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

// segmentDistance returns the distance from p to the segment a-b.
func segmentDistance(p, a, b Point) float64 {
	d := b.Sub(a)
	lenSq := d.X*d.X + d.Y*d.Y
	if lenSq == 0 {
		return p.Dist(a)
	}
	t := ((p.X-a.X)*d.X + (p.Y-a.Y)*d.Y) / lenSq
	t = math.Max(0, math.Min(1, t))
	return p.Dist(Point{X: a.X + t*d.X, Y: a.Y + t*d.Y})
}
