package pipeline

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/ironsheep/filmreader/internal/calib"
	"github.com/ironsheep/filmreader/internal/config"
	"github.com/ironsheep/filmreader/internal/cvquad"
	"github.com/ironsheep/filmreader/internal/detection"
	"github.com/ironsheep/filmreader/internal/geom"
	"github.com/ironsheep/filmreader/internal/imaging"
	"github.com/ironsheep/filmreader/internal/marker"
	"github.com/ironsheep/filmreader/internal/overlay"
)

// ErrNoFrame is returned by SetROI before the first frame has been
// processed, when there are no dimensions to validate against.
var ErrNoFrame = errors.New("pipeline: no frame processed yet")

// State is the phase of the pipeline's calibration lifecycle.
type State int

const (
	// Uncalibrated: no frame has been seen.
	Uncalibrated State = iota

	// ROIPending: dimensions are known and calibration was attempted, but
	// the ROI has not been committed yet.
	ROIPending

	// Active: a ROI is committed and frames are searched for borders.
	Active
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case Uncalibrated:
		return "uncalibrated"
	case ROIPending:
		return "roi_pending"
	case Active:
		return "active"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the outcome of processing one frame.
type Result struct {
	// Image is the composited output frame, owned by the caller.
	Image *image.RGBA `json:"-"`

	// Quad is the detected border, empty when none was found.
	Quad detection.Quad `json:"quad"`

	// ROI is the region searched in this frame.
	ROI image.Rectangle `json:"roi"`

	// State is the pipeline state after the frame.
	State State `json:"state"`

	// Frame counts processed frames, starting at 1.
	Frame uint64 `json:"frame"`

	// Edges is the frame's edge map. It aliases a working buffer and is
	// only valid until the next call to Process.
	Edges *imaging.EdgeMap `json:"-"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithMarker sets the downstream marker stage. The default passes frames
// through unchanged.
func WithMarker(s marker.Stage) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.marker = s
		}
	}
}

// WithCalibrator sets the calibrator. It enables calibration even when the
// configuration does not; without it an enabled configuration uses
// calib.InsetCalibrator.
func WithCalibrator(c calib.Calibrator) Option {
	return func(p *Pipeline) {
		p.calibrator = c
	}
}

// WithDetector replaces the configured detection backend.
func WithDetector(d Detector) Option {
	return func(p *Pipeline) {
		p.detector = d
	}
}

// Pipeline runs border detection frame by frame.
//
// The only state carried between frames is the calibration lifecycle: the
// tracker's ROI and lock and the pipeline State. Everything else is
// recreated per frame.
//
// A Pipeline is not safe for concurrent use.
type Pipeline struct {
	cfg        config.Config
	log        *slog.Logger
	session    string
	tracker    *calib.Tracker
	calibrator calib.Calibrator
	detector   Detector
	marker     marker.Stage
	overlay    *overlay.Compositor
	frames     framePool

	lineColor, rectColor, textColor overlay.Option

	state     State
	bounds    image.Rectangle
	committed image.Rectangle
	pending   *image.Rectangle
	frame     uint64
	found     bool
}

// New creates a pipeline from cfg. cfg is validated first; an unknown
// backend or preview mode is an error, and selecting the opencv backend in
// a build without OpenCV support fails with cvquad.ErrUnavailable.
func New(cfg config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	line, rect, text, err := cfg.Preview.Colors()
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:       cfg,
		log:       config.Discard(),
		session:   uuid.NewString(),
		marker:    marker.Passthrough{},
		overlay:   overlay.New(),
		lineColor: overlay.WithColor(line),
		rectColor: overlay.WithColor(rect),
		textColor: overlay.WithColor(text),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.calibrator == nil && cfg.Calibration.Enabled {
		p.calibrator = calib.InsetCalibrator{Fraction: cfg.Calibration.InsetFraction}
	}
	p.tracker = calib.NewTracker(p.calibrator)

	if p.detector == nil {
		switch cfg.Detection.Backend {
		case config.BackendOpenCV:
			d, err := cvquad.New(cvquad.Options{
				Low:             cfg.Detection.CannyLow,
				High:            cfg.Detection.CannyHigh,
				MinAreaFraction: cfg.Detection.MinAreaFraction,
			})
			if err != nil {
				return nil, fmt.Errorf("opencv backend: %w", err)
			}
			p.detector = d
		default:
			p.detector = NativeDetector{
				Low:             cfg.Detection.CannyLow,
				High:            cfg.Detection.CannyHigh,
				Adaptive:        cfg.Detection.Adaptive,
				MinAreaFraction: cfg.Detection.MinAreaFraction,
			}
		}
	}

	p.log = p.log.With("session", p.session)
	p.log.Debug("pipeline created",
		"backend", cfg.Detection.Backend,
		"preview", cfg.Preview.Mode,
		"calibration", p.calibrator != nil)
	return p, nil
}

// Session returns the pipeline's session id, as used in its log records.
func (p *Pipeline) Session() string {
	return p.session
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	return p.state
}

// Detector returns the detection backend frames are run through.
func (p *Pipeline) Detector() Detector {
	return p.detector
}

// Calibration returns a snapshot of the ROI tracker.
func (p *Pipeline) Calibration() calib.State {
	return p.tracker.State()
}

// Process runs one frame through the pipeline.
//
// Steps: recalibrate if the dimensions changed or calibration was
// invalidated, commit the ROI, extract edges, reduce them to a quad, run
// the marker stage, queue the preview markings and render them.
//
// Not finding a quad is not an error. A nil or zero-area img returns
// imaging.ErrEmptyImage. A panic in the marker stage is recovered and the
// frame is returned without the stage's output.
func (p *Pipeline) Process(img image.Image) (*Result, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, imaging.ErrEmptyImage
	}
	p.frame++

	before := p.tracker.State()
	if err := p.applyPending(img); err != nil {
		p.log.Warn("dropping requested roi", "frame", p.frame, "error", err)
	}
	roi, err := p.tracker.EnsureCalibrated(img)
	if err != nil {
		return nil, err
	}
	after := p.tracker.State()
	p.bounds = img.Bounds()

	switch {
	case p.state == Uncalibrated:
		p.setState(ROIPending, "first frame")
	case before.Width != after.Width || before.Height != after.Height:
		p.setState(ROIPending, "dimensions changed")
	case roi != p.committed:
		p.setState(ROIPending, "roi changed")
	}
	if p.state == ROIPending {
		if err := p.tracker.SetROI(roi, img); err != nil {
			return nil, err
		}
		p.committed = roi
		p.setState(Active, "roi committed")
	}

	work := imaging.CopyInto(p.frames.get(img.Bounds()), img)
	defer p.frames.put(work)

	edges, quad, err := p.detector.Detect(work, roi, p.tracker.Buffer(), after.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", p.frame, err)
	}
	p.logDetection(quad)

	staged := p.runMarker(img, edges, work, quad.Points)
	p.compose(img, staged, edges, quad, roi)

	return &Result{
		Image: p.overlay.RenderAndClear(nil),
		Quad:  quad,
		ROI:   roi,
		State: p.state,
		Frame: p.frame,
		Edges: edges,
	}, nil
}

// SetROI commits rect as the ROI immediately and pins it: calibration will
// not replace it until Recalibrate is called or the frame size changes.
// rect is validated against the last frame's bounds now and applied to the
// tracker with the next frame.
func (p *Pipeline) SetROI(rect image.Rectangle) error {
	if p.state == Uncalibrated {
		return ErrNoFrame
	}
	if !geom.ValidROI(rect, p.bounds) {
		return fmt.Errorf("roi %v in frame %v: %w", rect, p.bounds, imaging.ErrInvalidROI)
	}
	p.pending = &rect
	p.committed = rect
	p.setState(Active, "roi set")
	return nil
}

// Recalibrate drops calibration and any pinned ROI. The next frame starts
// again from the full frame and re-runs the calibrator.
func (p *Pipeline) Recalibrate() {
	p.tracker.Invalidate()
	p.pending = nil
	if p.state != Uncalibrated {
		p.setState(ROIPending, "recalibration requested")
	}
}

// applyPending hands a ROI requested through SetROI to the tracker.
func (p *Pipeline) applyPending(img image.Image) error {
	if p.pending == nil {
		return nil
	}
	rect := *p.pending
	p.pending = nil
	if err := p.tracker.Pin(rect, img); err != nil {
		return err
	}
	p.committed = rect
	return nil
}

// runMarker calls the marker stage and guards the pipeline against it.
func (p *Pipeline) runMarker(src image.Image, edges *imaging.EdgeMap, work *image.RGBA, quad geom.Polygon) (out *image.RGBA) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("marker stage panicked", "frame", p.frame, "panic", r)
			out = imaging.CopyInto(work, src)
		}
	}()

	var gray *image.Gray
	if edges != nil {
		gray = edges.Gray
	}
	out = p.marker.Process(gray, work, quad)
	if out == nil {
		return work
	}
	if out.Bounds() != work.Bounds() {
		p.log.Warn("marker stage changed frame bounds, ignoring its output",
			"frame", p.frame, "want", work.Bounds(), "got", out.Bounds())
		return work
	}
	return out
}

// compose queues the preview for the configured mode.
func (p *Pipeline) compose(src image.Image, staged *image.RGBA, edges *imaging.EdgeMap, quad detection.Quad, roi image.Rectangle) {
	switch p.cfg.Preview.Mode {
	case config.ModeRaw:
		p.overlay.OverrideImage(src)
		return
	case config.ModeThresholded:
		if edges != nil {
			p.overlay.OverrideImage(edges.Gray)
		} else {
			p.overlay.OverrideImage(image.NewGray(src.Bounds()))
		}
		p.overlay.AddRect(&roi, p.rectColor)
	default:
		p.overlay.OverrideImage(staged)
		if quad.Found() {
			p.overlay.AddLine(quad.Points, p.lineColor)
		}
		p.overlay.AddRect(&roi, p.rectColor)
	}

	if p.cfg.Preview.ShowStatus {
		b := src.Bounds()
		scale := math.Max(1, float64(b.Dy())/240)
		status := fmt.Sprintf("%s %s", p.state, foundLabel(quad))
		pos := image.Pt(b.Min.X+10, b.Min.Y+10+int(11*scale))
		p.overlay.AddText(status, pos, p.textColor, overlay.WithScale(scale))
	}
}

func foundLabel(q detection.Quad) string {
	if q.Found() {
		return "quad"
	}
	return "no quad"
}

func (p *Pipeline) setState(s State, reason string) {
	if s == p.state {
		return
	}
	p.log.Debug("state transition",
		"frame", p.frame, "from", p.state.String(), "to", s.String(), "reason", reason)
	p.state = s
}

func (p *Pipeline) logDetection(q detection.Quad) {
	if q.Found() == p.found {
		return
	}
	p.found = q.Found()
	if p.found {
		p.log.Debug("quad found", "frame", p.frame, "corners", q.Ordered(), "area", q.Area)
	} else {
		p.log.Debug("quad lost", "frame", p.frame)
	}
}
