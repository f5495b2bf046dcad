package calib

import (
	"image"
)

// Calibrator computes the valid, undistorted region of a frame.
//
// Undistort reports ok=false when no correction could be derived from img
// (for example, the calibration target is not in view). On success valid is
// the usable sub-rectangle in frame coordinates.
type Calibrator interface {
	Undistort(img image.Image) (ok bool, valid image.Rectangle)
}

// CalibratorFunc adapts an ordinary function to the Calibrator interface.
type CalibratorFunc func(img image.Image) (bool, image.Rectangle)

// Undistort calls f(img).
func (f CalibratorFunc) Undistort(img image.Image) (bool, image.Rectangle) {
	return f(img)
}

// InsetCalibrator treats a fixed margin around the frame as distorted.
// Fraction is the share of the width and height removed from each side; it
// must be in [0, 0.5).
//
// It stands in for a real lens model when one is not available, and keeps
// the detector away from the vignetted image corners of cheap cameras.
type InsetCalibrator struct {
	Fraction float64
}

// Undistort returns the frame bounds inset by Fraction on every side.
func (c InsetCalibrator) Undistort(img image.Image) (bool, image.Rectangle) {
	if img == nil || c.Fraction < 0 || c.Fraction >= 0.5 {
		return false, image.Rectangle{}
	}
	b := img.Bounds()
	dx := int(c.Fraction * float64(b.Dx()))
	dy := int(c.Fraction * float64(b.Dy()))
	r := image.Rect(b.Min.X+dx, b.Min.Y+dy, b.Max.X-dx, b.Max.Y-dy)
	if r.Empty() {
		return false, image.Rectangle{}
	}
	return true, r
}
