// Package cvquad is an OpenCV implementation of the border detector.
//
// It runs the same steps as the native detector (box blur, Canny, external
// contours, Douglas-Peucker at detection.SimplifyTolerance, convex hull,
// four-vertex gate) on gocv. OpenCV support is compiled in only with the
// gocv build tag:
//
//	go build -tags gocv ./...
//
// Without the tag, New returns ErrUnavailable.
package cvquad

import "errors"

// ErrUnavailable is returned by New in builds without OpenCV support.
var ErrUnavailable = errors.New("cvquad: built without OpenCV support (use -tags gocv)")

// Options configures the detector.
type Options struct {
	// Low and High are the Canny hysteresis thresholds.
	Low, High float64

	// MinAreaFraction is the smallest share of the ROI a border must
	// enclose.
	MinAreaFraction float64
}
