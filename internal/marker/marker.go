// Package marker defines the downstream stage that consumes detected frame
// borders.
//
// The pipeline treats a marker stage as an opaque transform. It receives
// the edge map of the current frame, the working colour image and the
// detected quad (empty when nothing was found) and returns the image to
// continue with, which may be the same buffer modified in place.
package marker

import (
	"image"

	"github.com/ironsheep/filmreader/internal/geom"
)

// Stage processes one frame after border detection.
//
// edges may be nil when the detector produced no edge map. img is
// owned by the pipeline for the duration of the call; a stage may draw on
// it and return it, or return a different image of the same bounds.
// Returning nil keeps img.
type Stage interface {
	Process(edges *image.Gray, img *image.RGBA, quad geom.Polygon) *image.RGBA
}

// Func adapts an ordinary function to the Stage interface.
type Func func(edges *image.Gray, img *image.RGBA, quad geom.Polygon) *image.RGBA

// Process calls f.
func (f Func) Process(edges *image.Gray, img *image.RGBA, quad geom.Polygon) *image.RGBA {
	return f(edges, img, quad)
}

// Passthrough is a Stage that returns img unchanged.
type Passthrough struct{}

// Process returns img.
func (Passthrough) Process(_ *image.Gray, img *image.RGBA, _ geom.Polygon) *image.RGBA {
	return img
}

// Chain runs stages in order, feeding each the image returned by the
// previous one. Nil stages are skipped.
type Chain []Stage

// Process runs every stage of c.
func (c Chain) Process(edges *image.Gray, img *image.RGBA, quad geom.Polygon) *image.RGBA {
	for _, s := range c {
		if s == nil {
			continue
		}
		if out := s.Process(edges, img, quad); out != nil {
			img = out
		}
	}
	return img
}
