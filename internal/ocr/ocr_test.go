package ocr

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/filmreader/internal/geom"
)

// fakeReader returns a fixed result and records the regions it was asked
// to read.
type fakeReader struct {
	text    string
	err     error
	regions []image.Rectangle
}

func (f *fakeReader) Read(img image.Image, region image.Rectangle) (*Result, error) {
	f.regions = append(f.regions, region)
	if f.err != nil {
		return nil, f.err
	}
	return &Result{Text: f.text, Region: region.Intersect(img.Bounds())}, nil
}

func newWhiteFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}

func countNonWhite(img *image.RGBA) int {
	n := 0
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			if img.RGBAAt(x, y) != white {
				n++
			}
		}
	}
	return n
}

var testQuad = geom.Polygon{{X: 100, Y: 100}, {X: 300, Y: 100}, {X: 300, Y: 200}, {X: 100, Y: 200}}

func TestLabelStage_DrawsLabel(t *testing.T) {
	reader := &fakeReader{text: "  FRAME\n 12A "}
	stage := NewLabelStage(reader, nil)
	img := newWhiteFrame(400, 300)

	out := stage.Process(nil, img, testQuad)
	if out != img {
		t.Error("label should be drawn in place")
	}
	if len(reader.regions) != 1 || reader.regions[0] != image.Rect(100, 100, 301, 201) {
		t.Errorf("read regions %v, want the quad bounds", reader.regions)
	}
	if countNonWhite(out) == 0 {
		t.Fatal("no label drawn")
	}
	// The label sits above the border.
	for y := 100; y < 300; y++ {
		for x := 0; x < 400; x++ {
			if out.RGBAAt(x, y) != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
				t.Fatalf("label pixel at (%d,%d) inside the border", x, y)
			}
		}
	}
	if stage.Last() == nil || stage.Last().Text != "  FRAME\n 12A " {
		t.Errorf("Last() = %+v", stage.Last())
	}
}

func TestLabelStage_LabelInsideNearTop(t *testing.T) {
	stage := NewLabelStage(&fakeReader{text: "A"}, nil)
	img := newWhiteFrame(200, 200)
	quad := geom.Polygon{{X: 10, Y: 5}, {X: 190, Y: 5}, {X: 190, Y: 190}, {X: 10, Y: 190}}

	out := stage.Process(nil, img, quad)
	if countNonWhite(out) == 0 {
		t.Error("label at the top of the frame should be drawn inside the border")
	}
}

func TestLabelStage_NoQuad(t *testing.T) {
	reader := &fakeReader{text: "X"}
	stage := NewLabelStage(reader, nil)
	img := newWhiteFrame(100, 100)

	if out := stage.Process(nil, img, nil); out != img || countNonWhite(out) != 0 {
		t.Error("frame without a quad should pass through")
	}
	if len(reader.regions) != 0 {
		t.Error("reader called without a quad")
	}
	if stage.Last() != nil {
		t.Error("Last() should be nil without a quad")
	}
}

func TestLabelStage_ReadError(t *testing.T) {
	stage := NewLabelStage(&fakeReader{err: errors.New("tesseract gone")}, nil)
	img := newWhiteFrame(400, 300)

	out := stage.Process(nil, img, testQuad)
	if out != img || countNonWhite(out) != 0 {
		t.Error("OCR failure should leave the frame untouched")
	}
	if stage.Last() != nil {
		t.Error("Last() should be nil after a failed read")
	}
}

func TestLabelStage_EmptyText(t *testing.T) {
	stage := NewLabelStage(&fakeReader{text: " \n\t"}, nil)
	img := newWhiteFrame(400, 300)

	if out := stage.Process(nil, img, testQuad); countNonWhite(out) != 0 {
		t.Error("whitespace-only text should not be drawn")
	}
	if stage.Last() == nil {
		t.Error("Last() should hold the empty result")
	}
}

func TestLabelPosition(t *testing.T) {
	tests := []struct {
		name   string
		region image.Rectangle
		want   image.Point
	}{
		{"room above", image.Rect(100, 100, 300, 200), image.Pt(105, 95)},
		{"at top edge", image.Rect(0, 0, 300, 200), image.Pt(5, labelHeight+5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := labelPosition(tt.region); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// --- Tests against a real Tesseract install ---

// drawText draws text on an image using basicfont
func drawText(img *image.RGBA, x, y int, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// createImageWithText renders text at 1x and scales it up by blocks so
// Tesseract can read the bitmap font.
func createImageWithText(text string, scale int) *image.RGBA {
	w, h := len(text)*7+40, 40
	small := newWhiteFrame(w, h)
	drawText(small, 20, 25, text, color.Black)

	img := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
	for y := 0; y < h*scale; y++ {
		for x := 0; x < w*scale; x++ {
			img.Set(x, y, small.At(x/scale, y/scale))
		}
	}
	return img
}

func newReaderOrSkip(t *testing.T) *Reader {
	t.Helper()
	r, err := NewReader("eng")
	if err != nil {
		t.Skipf("Tesseract not available: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestReader_Read(t *testing.T) {
	r := newReaderOrSkip(t)
	img := createImageWithText("HELLO", 4)

	res, err := r.Read(img, img.Bounds())
	if err != nil {
		if strings.Contains(err.Error(), "tesseract") {
			t.Skip("Tesseract not available")
		}
		t.Fatalf("Read failed: %v", err)
	}
	t.Logf("Extracted text: %q (%d words)", res.Text, len(res.Words))
	if res.Region != img.Bounds() {
		t.Errorf("Region = %v, want %v", res.Region, img.Bounds())
	}
	for _, w := range res.Words {
		if !w.Bounds.In(img.Bounds()) {
			t.Errorf("word %q bounds %v outside image", w.Text, w.Bounds)
		}
	}
}

func TestReader_RegionOffset(t *testing.T) {
	r := newReaderOrSkip(t)
	text := createImageWithText("TEST", 4)
	img := newWhiteFrame(text.Bounds().Dx()+200, text.Bounds().Dy()+100)
	offset := image.Pt(150, 60)
	draw.Draw(img, text.Bounds().Add(offset), text, image.Point{}, draw.Src)

	res, err := r.Read(img, text.Bounds().Add(offset))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	for _, w := range res.Words {
		if w.Bounds.Min.X < offset.X || w.Bounds.Min.Y < offset.Y {
			t.Errorf("word %q bounds %v not offset into the source image", w.Text, w.Bounds)
		}
	}
}

func TestReader_EmptyRegion(t *testing.T) {
	r := newReaderOrSkip(t)
	img := newWhiteFrame(50, 50)

	if _, err := r.Read(img, image.Rect(100, 100, 200, 200)); !errors.Is(err, ErrEmptyRegion) {
		t.Errorf("got %v, want ErrEmptyRegion", err)
	}
}

func TestReader_Version(t *testing.T) {
	r := newReaderOrSkip(t)
	if r.Version() == "" {
		t.Error("empty Tesseract version")
	}
	if r.Language() != "eng" {
		t.Errorf("Language() = %q", r.Language())
	}
}
