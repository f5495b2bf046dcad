package pipeline

import (
	"image"

	"github.com/ironsheep/filmreader/internal/detection"
	"github.com/ironsheep/filmreader/internal/imaging"
)

// Detector finds the frame border in one frame.
//
// buf is the tracker-owned working edge buffer, sized to img. Detectors
// should write their edge map into it when they can; the returned EdgeMap
// is only read until the next frame. blockSize is the odd adaptive
// neighbourhood size for the frame's height.
type Detector interface {
	Detect(img image.Image, roi image.Rectangle, buf *image.Gray, blockSize int) (*imaging.EdgeMap, detection.Quad, error)
}

// NativeDetector is the pure Go detector: imaging.ExtractEdges followed by
// detection.ReduceToQuad.
type NativeDetector struct {
	Low, High       float64
	Adaptive        bool
	MinAreaFraction float64
}

// Detect extracts edges inside roi and reduces them to a quad.
func (d NativeDetector) Detect(img image.Image, roi image.Rectangle, buf *image.Gray, blockSize int) (*imaging.EdgeMap, detection.Quad, error) {
	opts := imaging.DefaultEdgeOptions(img.Bounds().Dy())
	opts.Low, opts.High = d.Low, d.High
	opts.Adaptive = d.Adaptive
	opts.Dst = buf
	if blockSize > 0 {
		opts.BlockSize = blockSize
	}

	edges, err := imaging.ExtractEdges(img, roi, opts)
	if err != nil {
		return nil, detection.Quad{}, err
	}
	return edges, detection.ReduceToQuad(edges, d.MinAreaFraction), nil
}
