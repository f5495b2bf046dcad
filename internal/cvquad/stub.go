//go:build !gocv
// +build !gocv

package cvquad

import (
	"image"

	"github.com/ironsheep/filmreader/internal/detection"
	"github.com/ironsheep/filmreader/internal/imaging"
)

// Detector is unavailable in this build.
type Detector struct{}

// New reports that OpenCV support is not compiled in.
func New(Options) (*Detector, error) {
	return nil, ErrUnavailable
}

// Detect always fails with ErrUnavailable.
func (*Detector) Detect(image.Image, image.Rectangle, *image.Gray, int) (*imaging.EdgeMap, detection.Quad, error) {
	return nil, detection.Quad{}, ErrUnavailable
}
