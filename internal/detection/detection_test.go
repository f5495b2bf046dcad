package detection

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/ironsheep/filmreader/internal/geom"
	"github.com/ironsheep/filmreader/internal/imaging"
)

func TestFindContours_Nil(t *testing.T) {
	if got := FindContours(nil); got != nil {
		t.Errorf("nil edge map: got %d contours, want nil", len(got))
	}
	if got := FindContours(&imaging.EdgeMap{}); got != nil {
		t.Errorf("empty edge map: got %d contours, want nil", len(got))
	}
}

func TestFindContours_Blank(t *testing.T) {
	edges := newEdgeMap(100, 100)
	if got := FindContours(edges); len(got) != 0 {
		t.Errorf("blank edge map: got %d contours, want 0", len(got))
	}
}

func TestFindContours_SingleRing(t *testing.T) {
	edges := newEdgeMap(80, 60)
	ring := image.Rect(10, 10, 50, 40)
	drawRing(edges, ring, 1)

	contours := FindContours(edges)
	if len(contours) != 1 {
		t.Fatalf("got %d contours, want 1", len(contours))
	}

	c := contours[0]
	if got := c.Bounds(); got != ring {
		t.Errorf("contour bounds: got %v, want %v", got, ring)
	}
	// Every boundary pixel of a 1px ring is visited once.
	if want := 2*(ring.Dx()+ring.Dy()) - 4; len(c) != want {
		t.Errorf("contour length: got %d, want %d", len(c), want)
	}
	if c[0] != geom.Pt(10, 10) {
		t.Errorf("contour should start at first raster pixel, got %v", c[0])
	}
	for _, p := range c {
		if !edges.IsEdge(int(p.X), int(p.Y)) {
			t.Fatalf("contour point %v is not an edge pixel", p)
		}
	}
}

func TestFindContours_NestedIgnored(t *testing.T) {
	edges := newEdgeMap(200, 200)
	drawRing(edges, image.Rect(20, 20, 180, 180), 3)
	drawRing(edges, image.Rect(60, 60, 140, 140), 1)
	fillRect(edges, image.Rect(95, 95, 105, 105))

	contours := FindContours(edges)
	if len(contours) != 1 {
		t.Fatalf("got %d contours, want 1 (nested regions must be skipped)", len(contours))
	}
	if got := contours[0].Bounds(); got != image.Rect(20, 20, 180, 180) {
		t.Errorf("contour bounds: got %v, want outer ring", got)
	}
}

func TestFindContours_RasterOrder(t *testing.T) {
	edges := newEdgeMap(200, 100)
	drawRing(edges, image.Rect(120, 30, 180, 90), 1)
	drawRing(edges, image.Rect(10, 10, 60, 50), 1)

	contours := FindContours(edges)
	if len(contours) != 2 {
		t.Fatalf("got %d contours, want 2", len(contours))
	}
	if contours[0][0] != geom.Pt(10, 10) {
		t.Errorf("first contour starts at %v, want (10,10)", contours[0][0])
	}
	if contours[1][0] != geom.Pt(120, 30) {
		t.Errorf("second contour starts at %v, want (120,30)", contours[1][0])
	}
}

func TestFindContours_IsolatedPixelAndLine(t *testing.T) {
	edges := newEdgeMap(50, 50)
	edges.Gray.SetGray(5, 5, white)
	fillRect(edges, image.Rect(10, 20, 30, 21))

	contours := FindContours(edges)
	if len(contours) != 2 {
		t.Fatalf("got %d contours, want 2", len(contours))
	}
	if len(contours[0]) != 1 {
		t.Errorf("isolated pixel: got %d points, want 1", len(contours[0]))
	}
	if a := contours[1].Area(); a != 0 {
		t.Errorf("line contour should have zero area, got %v", a)
	}
}

func TestFindContours_OffsetBounds(t *testing.T) {
	gray := image.NewGray(image.Rect(100, 200, 160, 260))
	edges := &imaging.EdgeMap{Gray: gray, ROI: gray.Bounds()}
	drawRing(edges, image.Rect(110, 210, 150, 250), 1)

	contours := FindContours(edges)
	if len(contours) != 1 {
		t.Fatalf("got %d contours, want 1", len(contours))
	}
	if got := contours[0].Bounds(); got != image.Rect(110, 210, 150, 250) {
		t.Errorf("contour bounds: got %v", got)
	}
}

func TestReduceToQuad_CleanBorder(t *testing.T) {
	edges := newEdgeMap(800, 600)
	drawRing(edges, image.Rect(100, 100, 700, 500), 2)

	quad := ReduceToQuad(edges, DefaultMinAreaFraction)
	if !quad.Found() {
		t.Fatal("no quad found for a clean rectangular border")
	}
	assertCorners(t, quad, [4]geom.Point{
		{X: 100, Y: 100}, {X: 700, Y: 100}, {X: 700, Y: 500}, {X: 100, Y: 500},
	}, SimplifyTolerance)

	if quad.Area <= 0 || quad.ContourArea <= 0 {
		t.Errorf("areas should be positive: %v, %v", quad.Area, quad.ContourArea)
	}
}

func TestReduceToQuad_NoDetection(t *testing.T) {
	tests := []struct {
		name  string
		build func(*imaging.EdgeMap)
	}{
		{"blank", func(*imaging.EdgeMap) {}},
		{"too small", func(e *imaging.EdgeMap) {
			drawRing(e, image.Rect(10, 10, 60, 60), 1)
		}},
		{"disk", func(e *imaging.EdgeMap) {
			fillDisk(e, image.Pt(200, 150), 120)
		}},
		{"line", func(e *imaging.EdgeMap) {
			fillRect(e, image.Rect(10, 150, 390, 151))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edges := newEdgeMap(400, 300)
			tt.build(edges)
			if quad := ReduceToQuad(edges, DefaultMinAreaFraction); quad.Found() {
				t.Errorf("unexpected quad %v", quad.Points)
			}
		})
	}

	if quad := ReduceToQuad(nil, DefaultMinAreaFraction); quad.Found() {
		t.Error("nil edge map produced a quad")
	}
}

func TestReduceToQuad_AreaRelativeToROI(t *testing.T) {
	// The same ring passes against a small ROI and fails against the frame.
	edges := newEdgeMap(400, 400)
	ring := image.Rect(150, 150, 250, 250)
	drawRing(edges, ring, 1)

	if quad := ReduceToQuad(edges, DefaultMinAreaFraction); quad.Found() {
		t.Error("ring covering 6% of the frame should be rejected")
	}

	edges.ROI = image.Rect(140, 140, 260, 260)
	if quad := ReduceToQuad(edges, DefaultMinAreaFraction); !quad.Found() {
		t.Error("ring covering most of the ROI should be accepted")
	}
}

func TestReduceToQuad_Perspective(t *testing.T) {
	edges := newEdgeMap(640, 480)
	corners := []image.Point{{120, 80}, {540, 110}, {500, 420}, {90, 380}}
	drawPolyline(edges, corners)

	quad := ReduceToQuad(edges, DefaultMinAreaFraction)
	if !quad.Found() {
		t.Fatal("no quad found for a skewed border")
	}
	assertCorners(t, quad, [4]geom.Point{
		geom.Pt(120, 80), geom.Pt(540, 110), geom.Pt(500, 420), geom.Pt(90, 380),
	}, SimplifyTolerance)
}

func TestReduceToQuad_FirstAcceptedWins(t *testing.T) {
	edges := newEdgeMap(400, 400)
	drawRing(edges, image.Rect(10, 10, 390, 200), 1)
	drawRing(edges, image.Rect(10, 210, 390, 390), 1)

	quad := ReduceToQuad(edges, 0.1)
	if !quad.Found() {
		t.Fatal("no quad found")
	}
	if b := quad.Bounds(); b.Min.Y > 20 {
		t.Errorf("expected the upper ring to win, got bounds %v", b)
	}
}

func TestReduceContours_SkipsShortContours(t *testing.T) {
	roi := image.Rect(0, 0, 10, 10)
	contours := []geom.Polygon{
		{geom.Pt(0, 0), geom.Pt(9, 0), geom.Pt(9, 9)},
	}
	if quad := ReduceContours(contours, roi, 0); quad.Found() {
		t.Error("three-point contour must be skipped")
	}
}

func TestQuad_Ordered(t *testing.T) {
	q := Quad{Points: geom.Polygon{
		{X: 700, Y: 500}, {X: 100, Y: 100}, {X: 100, Y: 500}, {X: 700, Y: 100},
	}}
	want := geom.Polygon{
		{X: 100, Y: 100}, {X: 700, Y: 100}, {X: 700, Y: 500}, {X: 100, Y: 500},
	}
	got := q.Ordered()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Ordered: got %v, want %v", got, want)
		}
	}
	if q.Points[0] != (geom.Point{X: 700, Y: 500}) {
		t.Error("Ordered modified the quad")
	}

	if (Quad{}).Ordered() != nil {
		t.Error("empty quad should order to nil")
	}
	if !(Quad{}).Bounds().Empty() {
		t.Error("empty quad should have empty bounds")
	}
}

// Helper functions

var white = color.Gray{Y: 255}

func newEdgeMap(width, height int) *imaging.EdgeMap {
	gray := image.NewGray(image.Rect(0, 0, width, height))
	return &imaging.EdgeMap{Gray: gray, ROI: gray.Bounds()}
}

func setEdge(e *imaging.EdgeMap, x, y int) {
	if (image.Point{X: x, Y: y}).In(e.Gray.Rect) {
		e.Gray.Pix[e.Gray.PixOffset(x, y)] = 255
	}
}

func fillRect(e *imaging.EdgeMap, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			setEdge(e, x, y)
		}
	}
}

// drawRing draws the outline of r, thickness pixels wide, inside r.
func drawRing(e *imaging.EdgeMap, r image.Rectangle, thickness int) {
	fillRect(e, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness))
	fillRect(e, image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y))
	fillRect(e, image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y))
	fillRect(e, image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y))
}

func fillDisk(e *imaging.EdgeMap, c image.Point, radius int) {
	for y := c.Y - radius; y <= c.Y+radius; y++ {
		for x := c.X - radius; x <= c.X+radius; x++ {
			dx, dy := x-c.X, y-c.Y
			if dx*dx+dy*dy <= radius*radius {
				setEdge(e, x, y)
			}
		}
	}
}

// drawPolyline draws a closed 8-connected outline through pts.
func drawPolyline(e *imaging.EdgeMap, pts []image.Point) {
	for i := range pts {
		a, b := pts[i], pts[(i+1)%len(pts)]
		steps := max(abs(b.X-a.X), abs(b.Y-a.Y))
		for s := 0; s <= steps; s++ {
			t := float64(s) / float64(steps)
			x := int(math.Round(float64(a.X) + t*float64(b.X-a.X)))
			y := int(math.Round(float64(a.Y) + t*float64(b.Y-a.Y)))
			setEdge(e, x, y)
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// assertCorners checks that every expected corner has a quad point within tol.
func assertCorners(t *testing.T, q Quad, want [4]geom.Point, tol float64) {
	t.Helper()
	for _, w := range want {
		best := math.Inf(1)
		for _, p := range q.Points {
			best = math.Min(best, p.Dist(w))
		}
		if best > tol {
			t.Errorf("corner %v: nearest quad point is %.1f away (points %v)", w, best, q.Points)
		}
	}
}
