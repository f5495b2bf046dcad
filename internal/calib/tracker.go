// Package calib tracks the region of interest the detector works in.
//
// A Tracker remembers the dimensions of the last frame it saw. When they
// change (or on the very first frame) it recomputes everything derived from
// the frame size: the adaptive block size hint, the working edge buffer and
// the ROI, which falls back to the full frame. When a Calibrator is
// configured the tracker asks it for the valid, undistorted sub-region of
// the frame and narrows the ROI to it. A successful calibration is held
// fixed until the dimensions change again or Invalidate is called.
//
// A Tracker is not safe for concurrent use.
package calib

import (
	"fmt"
	"image"

	"github.com/ironsheep/filmreader/internal/geom"
	"github.com/ironsheep/filmreader/internal/imaging"
)

// State is a snapshot of a Tracker.
type State struct {
	// ROI is the current region of interest, in frame coordinates.
	ROI image.Rectangle `json:"roi"`

	// Locked is true once calibration has succeeded and the ROI is held
	// fixed.
	Locked bool `json:"locked"`

	// Pinned is true when the ROI was pinned by the caller. A pinned ROI is
	// never replaced by calibration.
	Pinned bool `json:"pinned"`

	// Width and Height are the last seen frame dimensions, zero before the
	// first frame.
	Width  int `json:"width"`
	Height int `json:"height"`

	// BlockSize is the odd adaptive neighbourhood size derived from Height.
	BlockSize int `json:"block_size"`
}

// Tracker maintains the ROI and the size-derived working state of the
// pipeline.
//
// The tracker owns the working edge buffer returned by Buffer. The buffer
// is replaced on every dimension change, so callers must not keep it across
// frames.
type Tracker struct {
	calibrator Calibrator

	bounds    image.Rectangle
	known     bool
	blockSize int
	roi       image.Rectangle
	locked    bool
	pinned    bool
	buf       *image.Gray
}

// NewTracker creates a tracker. A nil calibrator disables calibration: the
// ROI then stays at the full frame unless set explicitly.
func NewTracker(c Calibrator) *Tracker {
	return &Tracker{calibrator: c}
}

// EnsureCalibrated prepares the tracker for img and returns the ROI to use.
//
// On the first frame, or when img's bounds differ from the previous
// frame's, all size-derived state is recomputed and the ROI is reset to the
// full frame. Calibration is then attempted unless the ROI is locked or
// pinned; a failed attempt leaves the ROI unchanged and is retried on the
// next call.
//
// Calling EnsureCalibrated repeatedly with frames of the same dimensions and
// no intervening state change returns the same rectangle every time.
func (t *Tracker) EnsureCalibrated(img image.Image) (image.Rectangle, error) {
	if img == nil || img.Bounds().Empty() {
		return image.Rectangle{}, imaging.ErrEmptyImage
	}
	t.checkDimensions(img.Bounds())

	if t.calibrator != nil && !t.locked && !t.pinned {
		if ok, valid := t.calibrator.Undistort(img); ok {
			if r := valid.Intersect(t.bounds); !r.Empty() {
				t.roi = r
				t.locked = true
			}
		}
	}
	return t.roi, nil
}

// SetROI replaces the ROI with rect.
//
// The dimension check of EnsureCalibrated runs first, so a frame of new
// size recomputes the working state before rect is validated against it.
// rect must be non-empty and lie inside img's bounds, otherwise
// imaging.ErrInvalidROI is returned and the ROI is left unchanged. The
// working buffer is cleared inside rect so no edge data from a previous
// frame can leak into the new region.
//
// SetROI does not change the lock: an unlocked ROI may still be narrowed by
// a later successful calibration. Use Pin to keep rect regardless.
func (t *Tracker) SetROI(rect image.Rectangle, img image.Image) error {
	if img == nil || img.Bounds().Empty() {
		return imaging.ErrEmptyImage
	}
	t.checkDimensions(img.Bounds())

	if !geom.ValidROI(rect, t.bounds) {
		return fmt.Errorf("roi %v in frame %v: %w", rect, t.bounds, imaging.ErrInvalidROI)
	}

	t.clearBuffer(rect)
	t.roi = rect
	return nil
}

// Pin sets the ROI like SetROI and keeps it until the dimensions change or
// Invalidate is called. Calibration is not attempted while pinned.
func (t *Tracker) Pin(rect image.Rectangle, img image.Image) error {
	if err := t.SetROI(rect, img); err != nil {
		return err
	}
	t.pinned = true
	return nil
}

// Invalidate drops calibration and any pinned ROI. The next
// EnsureCalibrated call starts again from the full frame and re-runs the
// calibrator. Frame dimensions are kept.
func (t *Tracker) Invalidate() {
	t.locked = false
	t.pinned = false
	if t.known {
		t.roi = t.bounds
		t.clearBuffer(t.bounds)
	}
}

// State returns a snapshot of the tracker.
func (t *Tracker) State() State {
	return State{
		ROI:       t.roi,
		Locked:    t.locked,
		Pinned:    t.pinned,
		Width:     t.bounds.Dx(),
		Height:    t.bounds.Dy(),
		BlockSize: t.blockSize,
	}
}

// Buffer returns the working edge buffer for the current dimensions, or nil
// before the first frame.
func (t *Tracker) Buffer() *image.Gray {
	return t.buf
}

// checkDimensions recomputes size-derived state when b differs from the
// last seen bounds. It reports whether a recompute happened.
func (t *Tracker) checkDimensions(b image.Rectangle) bool {
	if t.known && b == t.bounds {
		return false
	}
	t.known = true
	t.bounds = b
	t.blockSize = imaging.BlockSize(b.Dy())
	t.buf = image.NewGray(b)
	t.roi = b
	t.locked = false
	t.pinned = false
	return true
}

func (t *Tracker) clearBuffer(r image.Rectangle) {
	if t.buf == nil {
		return
	}
	r = r.Intersect(t.buf.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := t.buf.Pix[t.buf.PixOffset(r.Min.X, y):t.buf.PixOffset(r.Max.X, y)]
		clear(row)
	}
}
