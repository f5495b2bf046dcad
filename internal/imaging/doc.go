// Package imaging provides the pixel-level operations of the frame reader:
// edge extraction restricted to a region of interest, frame loading and
// caching, and small conversion helpers shared by the overlay and the tool
// server.
//
// # Coordinate System
//
// All operations work with standard Go image.Image types. (0,0) is the
// top-left corner of the frame, X increases rightward and Y increases
// downward. Regions use image.Rectangle: Min inclusive, Max exclusive.
// Frames whose bounds do not start at the origin are supported; edge maps
// keep the source frame's bounds.
//
// # Edge Extraction
//
// ExtractEdges crops the region of interest, smooths it with a 5x5 box blur
// (bild), reduces it to grayscale and runs a Canny detector. The output
// buffer covers the whole frame and is zero outside the region, so later
// stages can scan it without re-checking the region.
//
// # Thread Safety
//
// FrameCache is safe for concurrent use. ExtractEdges is stateless, but a
// caller-supplied destination buffer must not be shared between concurrent
// calls.
//
// # Error Handling
//
// Malformed input is rejected with the sentinel errors ErrEmptyImage,
// ErrInvalidROI and ErrInvalidBlockSize, wrapped with context. Use errors.Is
// to test for them.
package imaging
