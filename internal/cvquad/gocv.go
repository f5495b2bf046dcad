//go:build gocv
// +build gocv

package cvquad

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ironsheep/filmreader/internal/detection"
	"github.com/ironsheep/filmreader/internal/geom"
	"github.com/ironsheep/filmreader/internal/imaging"
)

// Detector finds frame borders with OpenCV.
type Detector struct {
	opts Options
}

// New creates an OpenCV detector.
func New(opts Options) (*Detector, error) {
	return &Detector{opts: opts}, nil
}

// Detect extracts edges inside roi and reduces them to a quad. The edge map
// is written into buf when buf matches img's bounds. blockSize is unused:
// OpenCV's Canny has no adaptive pre-pass here.
func (d *Detector) Detect(img image.Image, roi image.Rectangle, buf *image.Gray, _ int) (*imaging.EdgeMap, detection.Quad, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, detection.Quad{}, imaging.ErrEmptyImage
	}
	bounds := img.Bounds()
	if !geom.ValidROI(roi, bounds) {
		return nil, detection.Quad{}, fmt.Errorf("%w: roi %v, image %v", imaging.ErrInvalidROI, roi, bounds)
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, detection.Quad{}, fmt.Errorf("failed to convert frame: %w", err)
	}
	defer mat.Close()

	// Mat coordinates start at the image origin.
	local := roi.Sub(bounds.Min)
	region := mat.Region(local)
	defer region.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(region, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.Blur(gray, &blurred, image.Pt(5, 5))

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, float32(d.opts.Low), float32(d.opts.High))

	edgeMap := &imaging.EdgeMap{Gray: buf, ROI: roi}
	if buf == nil || buf.Rect != bounds {
		edgeMap.Gray = image.NewGray(bounds)
	} else {
		clear(buf.Pix)
	}
	copyEdges(edgeMap.Gray, edges, roi)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()

	return edgeMap, d.reduce(contours, roi), nil
}

// reduce applies the area, simplification and hull gates to the contours.
func (d *Detector) reduce(contours gocv.PointsVector, roi image.Rectangle) detection.Quad {
	minArea := d.opts.MinAreaFraction * float64(roi.Dx()*roi.Dy())

	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		if contour.Size() < 4 {
			continue
		}
		area := gocv.ContourArea(contour)
		if area < minArea {
			continue
		}

		approx := gocv.ApproxPolyDP(contour, detection.SimplifyTolerance, true)
		hull := gocv.NewMat()
		gocv.ConvexHull(approx, &hull, false, true)

		if approx.Size() >= 3 && hull.Rows() == 4 {
			pts := make(geom.Polygon, 4)
			for r := 0; r < 4; r++ {
				v := hull.GetVeciAt(r, 0)
				pts[r] = geom.Pt(int(v[0])+roi.Min.X, int(v[1])+roi.Min.Y)
			}
			approx.Close()
			hull.Close()
			return detection.Quad{Points: pts, Area: pts.Area(), ContourArea: area}
		}
		approx.Close()
		hull.Close()
	}
	return detection.Quad{}
}

// copyEdges writes an 8-bit edge Mat of roi's size into dst at roi.
func copyEdges(dst *image.Gray, edges gocv.Mat, roi image.Rectangle) {
	data := edges.ToBytes()
	w := roi.Dx()
	for y := 0; y < roi.Dy(); y++ {
		row := data[y*w : (y+1)*w]
		off := dst.PixOffset(roi.Min.X, roi.Min.Y+y)
		for x, v := range row {
			if v != 0 {
				dst.Pix[off+x] = 255
			}
		}
	}
}
