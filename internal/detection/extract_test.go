package detection

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/ironsheep/filmreader/internal/geom"
	"github.com/ironsheep/filmreader/internal/imaging"
)

// newFrame returns a w x h frame filled with bg.
func newFrame(w, h int, bg color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	return img
}

// detect runs the native edge extractor and reducer over the whole frame.
func detect(t *testing.T, img image.Image) (*imaging.EdgeMap, Quad) {
	t.Helper()
	bounds := img.Bounds()
	edges, err := imaging.ExtractEdges(img, bounds, imaging.DefaultEdgeOptions(bounds.Dy()))
	if err != nil {
		t.Fatalf("ExtractEdges failed: %v", err)
	}
	return edges, ReduceToQuad(edges, DefaultMinAreaFraction)
}

func TestExtractAndReduce_PrintedBorder(t *testing.T) {
	img := newFrame(800, 600, color.White)
	border := image.Rect(100, 100, 700, 500)
	draw.Draw(img, border, image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(img, border.Inset(20), image.White, image.Point{}, draw.Src)

	_, quad := detect(t, img)
	if !quad.Found() {
		t.Fatal("expected a quad")
	}
	assertCorners(t, quad, [4]geom.Point{
		{X: 100, Y: 100}, {X: 700, Y: 100}, {X: 700, Y: 500}, {X: 100, Y: 500},
	}, 10)
}

func TestExtractAndReduce_FlatFrames(t *testing.T) {
	tests := []struct {
		name string
		bg   color.Color
	}{
		{"white", color.White},
		{"mid gray", color.RGBA{128, 128, 128, 255}},
		{"tinted", color.RGBA{90, 140, 200, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edges, quad := detect(t, newFrame(640, 480, tt.bg))
			if n := edges.Count(); n != 0 {
				t.Errorf("flat frame produced %d edge pixels", n)
			}
			if quad.Found() {
				t.Errorf("unexpected quad %v", quad.Points)
			}
		})
	}
}
