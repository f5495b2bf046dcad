package ocr

import (
	"image"
	"io"
	"log/slog"
	"strings"

	"github.com/ironsheep/filmreader/internal/geom"
	"github.com/ironsheep/filmreader/internal/imaging"
	"github.com/ironsheep/filmreader/internal/marker"
	"github.com/ironsheep/filmreader/internal/overlay"
)

// labelScale is the text magnification of the drawn label.
const labelScale = 2

// labelHeight is the height of one line of label text in pixels.
const labelHeight = 13 * labelScale

// LabelStage reads the text inside the detected border and draws it above
// the border's top-left corner, or just inside it when there is no room
// above. Frames without a quad pass through untouched.
type LabelStage struct {
	reader TextReader
	log    *slog.Logger
	canvas *overlay.Compositor
	last   *Result
}

var _ marker.Stage = (*LabelStage)(nil)

// NewLabelStage creates a label stage reading with r. A nil log discards.
func NewLabelStage(r TextReader, log *slog.Logger) *LabelStage {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LabelStage{reader: r, log: log, canvas: overlay.New()}
}

// Last returns the result of the most recent frame, or nil when that frame
// had no quad or OCR failed.
func (s *LabelStage) Last() *Result {
	return s.last
}

// Process implements marker.Stage.
func (s *LabelStage) Process(_ *image.Gray, img *image.RGBA, quad geom.Polygon) *image.RGBA {
	s.last = nil
	if len(quad) == 0 || img == nil {
		return img
	}

	region := quad.Bounds()
	res, err := s.reader.Read(img, region)
	if err != nil {
		s.log.Warn("label OCR failed", "region", region, "error", err)
		return img
	}
	s.last = res

	label := strings.Join(strings.Fields(res.Text), " ")
	if label == "" {
		return img
	}

	pos := labelPosition(res.Region)
	s.canvas.AddText(label, pos,
		overlay.WithColor(imaging.ContrastColor(img.At(pos.X, pos.Y-labelHeight/2))),
		overlay.WithScale(labelScale))
	s.log.Debug("label read", "text", label, "words", len(res.Words))
	return s.canvas.RenderAndClear(img)
}

// labelPosition returns the text baseline origin for a label over region.
func labelPosition(region image.Rectangle) image.Point {
	x := region.Min.X + 5
	if region.Min.Y-labelHeight-5 >= 0 {
		return image.Pt(x, region.Min.Y-5)
	}
	return image.Pt(x, region.Min.Y+labelHeight+5)
}
