package imaging

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/filmreader/internal/geom"
)

// Errors returned for malformed input. These indicate a caller bug rather
// than a detection failure, and are meant to be checked with errors.Is.
var (
	ErrEmptyImage       = errors.New("imaging: nil or zero-area image")
	ErrInvalidROI       = errors.New("imaging: region of interest is empty or outside the image")
	ErrInvalidBlockSize = errors.New("imaging: block size must be odd and positive")
)

// Default Canny thresholds, in 8-bit Sobel magnitude units. They match a
// clean printed frame border under ordinary room light.
const (
	DefaultCannyLow  = 100
	DefaultCannyHigh = 300
)

// blurRadius gives the 5x5 smoothing window applied before gradients.
const blurRadius = 2

// EdgeMap is a binary edge image produced by ExtractEdges.
//
// Gray has the bounds of the source frame. Edge pixels are 255 and every
// other pixel is 0; in particular every pixel outside ROI is always 0, so a
// contour search over the whole buffer can only find edges inside the
// tracked region.
//
// An EdgeMap is written once by ExtractEdges and must be treated as
// read-only afterwards.
type EdgeMap struct {
	// Gray holds the edge pixels.
	Gray *image.Gray

	// ROI is the region the edges were extracted from.
	ROI image.Rectangle
}

// Bounds returns the bounds of the underlying buffer.
func (e *EdgeMap) Bounds() image.Rectangle {
	return e.Gray.Bounds()
}

// IsEdge reports whether (x, y) is an edge pixel. Coordinates outside the
// buffer are never edges.
func (e *EdgeMap) IsEdge(x, y int) bool {
	if !(image.Point{X: x, Y: y}).In(e.Gray.Rect) {
		return false
	}
	return e.Gray.Pix[e.Gray.PixOffset(x, y)] != 0
}

// Count returns the number of edge pixels.
func (e *EdgeMap) Count() int {
	n := 0
	for _, v := range e.Gray.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// EdgeOptions configures ExtractEdges.
type EdgeOptions struct {
	// Low and High are the hysteresis thresholds on the Sobel gradient
	// magnitude (8-bit units). Pixels above High are strong edges; pixels
	// between Low and High are kept only when connected to a strong edge.
	Low, High float64

	// BlockSize is the neighbourhood size for the adaptive threshold
	// pre-pass. It must be odd and positive even when Adaptive is false;
	// use BlockSize(height) to derive it.
	BlockSize int

	// Adaptive enables the local-mean binarization pass before gradient
	// detection. It helps with uneven backlight at the cost of more noise.
	Adaptive bool

	// AdaptiveC is subtracted from the local mean in the adaptive pass.
	AdaptiveC float64

	// Dst, when non-nil and matching the source bounds, receives the edges
	// instead of a freshly allocated buffer. Its previous content is
	// discarded.
	Dst *image.Gray
}

// DefaultEdgeOptions returns the standard options for frames of the given
// height.
func DefaultEdgeOptions(height int) EdgeOptions {
	return EdgeOptions{
		Low:       DefaultCannyLow,
		High:      DefaultCannyHigh,
		BlockSize: BlockSize(height),
		AdaptiveC: 8,
	}
}

// BlockSize derives the adaptive neighbourhood size from an image height.
//
// The size is height/30 (a 1080-line frame gets 37), rounded up to the next
// odd number, and never smaller than 3. The result is always odd, as
// required by neighbourhood operations that need a centre pixel.
func BlockSize(height int) int {
	size := height / 30
	if size < 3 {
		size = 3
	}
	if size%2 == 0 {
		size++
	}
	return size
}

// ExtractEdges computes a binary edge map of img restricted to roi.
//
// Parameters:
//   - img: Source frame (any color model).
//   - roi: Region to process. Must be non-empty and inside img.Bounds().
//   - opts: Thresholds, block size and optional destination buffer.
//
// Returns:
//   - *EdgeMap: Edge buffer with img's bounds; zero outside roi.
//   - error: ErrEmptyImage, ErrInvalidROI or ErrInvalidBlockSize (wrapped).
//
// # Algorithm
//
//  1. Crop: only roi is copied out of the frame, so cost scales with the
//     tracked region rather than the full image.
//  2. Smoothing: 5x5 box blur to suppress sensor noise.
//  3. Grayscale conversion (an RGBA image with equal channels).
//  4. Optional adaptive threshold (local mean over BlockSize x BlockSize).
//  5. Canny: Sobel gradients, non-maximum suppression and hysteresis.
//
// The crop's borders are replicated during smoothing and gradient
// computation, so the ROI boundary itself never produces edges.
func ExtractEdges(img image.Image, roi image.Rectangle, opts EdgeOptions) (*EdgeMap, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	bounds := img.Bounds()
	if !geom.ValidROI(roi, bounds) {
		return nil, fmt.Errorf("%w: roi %v, image %v", ErrInvalidROI, roi, bounds)
	}
	if opts.BlockSize <= 0 || opts.BlockSize%2 == 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBlockSize, opts.BlockSize)
	}

	dst := opts.Dst
	if dst == nil || dst.Rect != bounds {
		dst = image.NewGray(bounds)
	} else {
		clear(dst.Pix)
	}

	cropped := imaging.Crop(img, roi)
	gray := effect.Grayscale(blur.Box(cropped, blurRadius))

	// bild keeps the grayscale result as RGBA with R=G=B, so luminance is
	// the first byte of every 4-byte pixel.
	width, height := roi.Dx(), roi.Dy()
	lum := make([]float64, width*height)
	for y := 0; y < height; y++ {
		off := y * gray.Stride
		for x := 0; x < width; x++ {
			lum[y*width+x] = float64(gray.Pix[off+4*x])
		}
	}

	if opts.Adaptive {
		lum = adaptiveThreshold(lum, width, height, opts.BlockSize, opts.AdaptiveC)
	}

	edges := canny(lum, width, height, opts.Low, opts.High)
	for y := 0; y < height; y++ {
		off := dst.PixOffset(roi.Min.X, roi.Min.Y+y)
		for x := 0; x < width; x++ {
			if edges[y*width+x] {
				dst.Pix[off+x] = 255
			}
		}
	}

	return &EdgeMap{Gray: dst, ROI: roi}, nil
}

// canny runs gradient computation, non-maximum suppression and hysteresis
// over a row-major luminance buffer.
func canny(lum []float64, width, height int, low, high float64) []bool {
	magnitude := make([]float64, width*height)
	direction := make([]float64, width*height)

	sobelX := [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY := [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				py := clamp(y+ky, 0, height-1)
				for kx := -1; kx <= 1; kx++ {
					px := clamp(x+kx, 0, width-1)
					v := lum[py*width+px]
					gx += v * sobelX[ky+1][kx+1]
					gy += v * sobelY[ky+1][kx+1]
				}
			}
			magnitude[y*width+x] = math.Sqrt(gx*gx + gy*gy)
			direction[y*width+x] = math.Atan2(gy, gx)
		}
	}

	// Non-maximum suppression
	suppressed := make([]float64, width*height)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			i := y*width + x
			mag := magnitude[i]
			if mag < low {
				continue
			}

			angle := direction[i]
			var n1, n2 float64
			switch {
			case (angle >= -math.Pi/8 && angle < math.Pi/8) || angle >= 7*math.Pi/8 || angle < -7*math.Pi/8:
				n1, n2 = magnitude[i-1], magnitude[i+1]
			case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
				n1, n2 = magnitude[i-width-1], magnitude[i+width+1]
			case (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8):
				n1, n2 = magnitude[i-width], magnitude[i+width]
			default:
				n1, n2 = magnitude[i-width+1], magnitude[i+width-1]
			}

			if mag >= n1 && mag >= n2 {
				suppressed[i] = mag
			}
		}
	}

	// Hysteresis: grow strong edges through connected weak pixels.
	edges := make([]bool, width*height)
	stack := make([]int, 0, 1024)
	for i, v := range suppressed {
		if v >= high && !edges[i] {
			edges[i] = true
			stack = append(stack, i)
		}
		for len(stack) > 0 {
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			jx, jy := j%width, j/width
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := jx+dx, jy+dy
					if nx < 0 || nx >= width || ny < 0 || ny >= height {
						continue
					}
					n := ny*width + nx
					if !edges[n] && suppressed[n] > 0 && suppressed[n] >= low {
						edges[n] = true
						stack = append(stack, n)
					}
				}
			}
		}
	}

	return edges
}

// adaptiveThreshold binarizes lum against the mean of each pixel's
// blockSize x blockSize neighbourhood minus c. Dark pixels (below the local
// mean) become 0 and the rest 255. Means are computed from a summed-area
// table so the cost does not depend on blockSize.
func adaptiveThreshold(lum []float64, width, height, blockSize int, c float64) []float64 {
	integral := make([]float64, (width+1)*(height+1))
	for y := 0; y < height; y++ {
		var rowSum float64
		for x := 0; x < width; x++ {
			rowSum += lum[y*width+x]
			integral[(y+1)*(width+1)+x+1] = integral[y*(width+1)+x+1] + rowSum
		}
	}

	half := blockSize / 2
	out := make([]float64, len(lum))
	for y := 0; y < height; y++ {
		y0, y1 := clamp(y-half, 0, height-1), clamp(y+half, 0, height-1)+1
		for x := 0; x < width; x++ {
			x0, x1 := clamp(x-half, 0, width-1), clamp(x+half, 0, width-1)+1
			sum := integral[y1*(width+1)+x1] - integral[y0*(width+1)+x1] -
				integral[y1*(width+1)+x0] + integral[y0*(width+1)+x0]
			mean := sum / float64((x1-x0)*(y1-y0))
			if lum[y*width+x] > mean-c {
				out[y*width+x] = 255
			}
		}
	}
	return out
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
