package detection

import (
	"image"

	"github.com/ironsheep/filmreader/internal/geom"
	"github.com/ironsheep/filmreader/internal/imaging"
)

// moore lists the 8 neighbour offsets in clockwise screen order, starting
// from the west neighbour.
var moore = [8]image.Point{
	{X: -1, Y: 0},  // W
	{X: -1, Y: -1}, // NW
	{X: 0, Y: -1},  // N
	{X: 1, Y: -1},  // NE
	{X: 1, Y: 0},   // E
	{X: 1, Y: 1},   // SE
	{X: 0, Y: 1},   // S
	{X: -1, Y: 1},  // SW
}

// grid is an edge map copied into a zero-padded boolean raster, so that
// neighbour lookups never need bounds checks.
type grid struct {
	width, height int // padded dimensions
	origin        image.Point
	edge          []bool
}

func newGrid(edges *imaging.EdgeMap) *grid {
	b := edges.Bounds()
	g := &grid{
		width:  b.Dx() + 2,
		height: b.Dy() + 2,
		origin: b.Min,
	}
	g.edge = make([]bool, g.width*g.height)
	for y := 0; y < b.Dy(); y++ {
		row := edges.Gray.Pix[y*edges.Gray.Stride : y*edges.Gray.Stride+b.Dx()]
		for x, v := range row {
			if v != 0 {
				g.edge[(y+1)*g.width+x+1] = true
			}
		}
	}
	return g
}

// point converts a padded index to frame coordinates.
func (g *grid) point(i int) geom.Point {
	return geom.Pt(i%g.width-1+g.origin.X, i/g.width-1+g.origin.Y)
}

// outside flood-fills the background reachable from the padded border
// through 4-connected non-edge pixels. Everything else is either an edge or
// a hole enclosed by edges.
func (g *grid) outside() []bool {
	out := make([]bool, len(g.edge))
	stack := make([]int, 0, 2*(g.width+g.height))
	push := func(i int) {
		if !out[i] && !g.edge[i] {
			out[i] = true
			stack = append(stack, i)
		}
	}
	for x := 0; x < g.width; x++ {
		push(x)
		push((g.height-1)*g.width + x)
	}
	for y := 0; y < g.height; y++ {
		push(y * g.width)
		push(y*g.width + g.width - 1)
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%g.width, i/g.width
		if x > 0 {
			push(i - 1)
		}
		if x < g.width-1 {
			push(i + 1)
		}
		if y > 0 {
			push(i - g.width)
		}
		if y < g.height-1 {
			push(i + g.width)
		}
	}
	return out
}

// FindContours extracts the outer boundaries of the edge regions in edges.
//
// Edge pixels are grouped into 8-connected components. A component is
// external when it borders the background that is connected to the image
// border; components lying inside a hole of another component (the inner
// side of a thick frame, text inside the frame) are nested and skipped. For
// each external component the outer boundary is traced clockwise with
// Moore-neighbour tracing.
//
// Contours are returned in raster order of each component's first pixel,
// top to bottom and left to right. Each contour lists every boundary pixel
// in tracing order, in the edge map's coordinates. A nil edge map yields no
// contours.
func FindContours(edges *imaging.EdgeMap) []geom.Polygon {
	if edges == nil || edges.Gray == nil || edges.Bounds().Empty() {
		return nil
	}
	g := newGrid(edges)
	outside := g.outside()

	visited := make([]bool, len(g.edge))
	contours := make([]geom.Polygon, 0)

	for i, isEdge := range g.edge {
		if !isEdge || visited[i] {
			continue
		}
		size, external := g.component(i, visited, outside)
		if !external {
			continue
		}
		contours = append(contours, g.trace(i, size))
	}
	return contours
}

// component marks the 8-connected component containing start as visited and
// reports its size and whether any of its pixels touches the outside
// background.
//
// Uses an explicit stack rather than recursion so large components cannot
// overflow the goroutine stack.
func (g *grid) component(start int, visited, outside []bool) (int, bool) {
	stack := []int{start}
	visited[start] = true
	size := 0
	external := false

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		size++

		if outside[i-1] || outside[i+1] || outside[i-g.width] || outside[i+g.width] {
			external = true
		}

		for _, d := range moore {
			n := i + d.Y*g.width + d.X
			if g.edge[n] && !visited[n] {
				visited[n] = true
				stack = append(stack, n)
			}
		}
	}
	return size, external
}

// trace follows the outer boundary of the component whose first raster
// pixel is start. The west neighbour of start is background by
// construction, so tracing begins with it as the backtrack pixel.
//
// Tracing stops when start is about to be left towards the same second
// pixel as the first time (Jacob's criterion), or after a step limit that no
// valid boundary of a component of the given size can exceed.
func (g *grid) trace(start, size int) geom.Polygon {
	boundary := geom.Polygon{g.point(start)}
	second := -1
	p := start
	back := 0 // index into moore of the backtrack pixel relative to p
	limit := 4*size + 16

	for step := 0; step < limit; step++ {
		next, nextBack, ok := g.advance(p, back)
		if !ok {
			// Isolated pixel
			break
		}
		if p == start {
			if second < 0 {
				second = next
			} else if next == second {
				break
			}
		}
		boundary = append(boundary, g.point(next))
		p, back = next, nextBack
	}

	// The walk re-enters start before stopping.
	if n := len(boundary); n > 1 && boundary[n-1] == boundary[0] {
		boundary = boundary[:n-1]
	}
	return boundary
}

// advance scans the neighbours of p clockwise, starting just after the
// backtrack direction, and returns the first edge pixel found together with
// the backtrack direction to use from it.
func (g *grid) advance(p, back int) (int, int, bool) {
	for k := 1; k <= 8; k++ {
		dir := (back + k) % 8
		d := moore[dir]
		n := p + d.Y*g.width + d.X
		if !g.edge[n] {
			continue
		}
		// The pixel examined just before n is background; express it
		// relative to n.
		prev := moore[(dir+7)%8]
		bx, by := (p%g.width)+prev.X, (p/g.width)+prev.Y
		nx, ny := n%g.width, n/g.width
		return n, directionOf(bx-nx, by-ny), true
	}
	return 0, 0, false
}

// directionOf returns the moore index of the unit offset (dx, dy).
func directionOf(dx, dy int) int {
	for i, d := range moore {
		if d.X == dx && d.Y == dy {
			return i
		}
	}
	return 0
}
