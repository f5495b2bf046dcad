package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/ironsheep/filmreader/internal/detection"
	"github.com/ironsheep/filmreader/internal/geom"
	"github.com/ironsheep/filmreader/internal/imaging"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "frame_load", "frame_process").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	case "frame_load":
		return s.handleFrameLoad(args)
	case "frame_process":
		return s.handleFrameProcess(args)
	case "frame_edges":
		return s.handleFrameEdges(args)
	case "frame_contours":
		return s.handleFrameContours(args)
	case "frame_set_roi":
		return s.handleFrameSetROI(args)
	case "frame_recalibrate":
		return s.handleFrameRecalibrate()
	case "frame_state":
		return s.handleFrameState()
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// Bounds represents a rectangular region in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge (exclusive)
	Y2 int `json:"y2"` // Bottom edge (exclusive)
}

func boundsOf(r image.Rectangle) Bounds {
	return Bounds{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// roiArgs is an optional rectangle in tool arguments.
type roiArgs struct {
	X1 *int `json:"x1"`
	Y1 *int `json:"y1"`
	X2 *int `json:"x2"`
	Y2 *int `json:"y2"`
}

var errPartialROI = errors.New("x1, y1, x2 and y2 must be given together")

// rect returns the rectangle, or ok false when no coordinate was given.
func (a roiArgs) rect() (r image.Rectangle, ok bool, err error) {
	set := 0
	for _, v := range []*int{a.X1, a.Y1, a.X2, a.Y2} {
		if v != nil {
			set++
		}
	}
	switch set {
	case 0:
		return image.Rectangle{}, false, nil
	case 4:
		return image.Rect(*a.X1, *a.Y1, *a.X2, *a.Y2), true, nil
	}
	return image.Rectangle{}, false, errPartialROI
}

// resolveROI picks the region for a one-off analysis of img: the explicit
// one if given, else the pipeline's current ROI when it tracks frames of
// img's size, else the whole frame.
func (s *Server) resolveROI(a roiArgs, img image.Image) (image.Rectangle, error) {
	bounds := img.Bounds()
	r, ok, err := a.rect()
	if err != nil {
		return image.Rectangle{}, err
	}
	if ok {
		if !geom.ValidROI(r, bounds) {
			return image.Rectangle{}, fmt.Errorf("roi %v in frame %v: %w", r, bounds, imaging.ErrInvalidROI)
		}
		return r, nil
	}

	s.mu.Lock()
	st := s.pipeline.Calibration()
	s.mu.Unlock()
	if st.Width == bounds.Dx() && st.Height == bounds.Dy() && geom.ValidROI(st.ROI, bounds) {
		return st.ROI, nil
	}
	return bounds, nil
}

// detect runs the pipeline's detection backend over roi of img without
// touching calibration state, so diagnostics agree with frame_process.
func (s *Server) detect(img image.Image, roi image.Rectangle) (*imaging.EdgeMap, detection.Quad, error) {
	s.mu.Lock()
	d := s.pipeline.Detector()
	s.mu.Unlock()
	return d.Detect(img, roi, nil, imaging.BlockSize(img.Bounds().Dy()))
}

// === Frame Handlers ===

type frameLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleFrameLoad(args json.RawMessage) (interface{}, error) {
	var a frameLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadFrameInfo(s.cache, a.Path)
}

type frameProcessArgs struct {
	Path         string `json:"path"`
	IncludeImage bool   `json:"include_image"`
	OutputPath   string `json:"output_path"`
}

// QuadResult describes a detected border.
type QuadResult struct {
	Found bool `json:"found"`

	// Corners are ordered top-left, top-right, bottom-right, bottom-left.
	Corners     []geom.Point `json:"corners,omitempty"`
	Area        float64      `json:"area,omitempty"`
	ContourArea float64      `json:"contour_area,omitempty"`
}

func quadResultOf(q detection.Quad) QuadResult {
	if !q.Found() {
		return QuadResult{}
	}
	return QuadResult{Found: true, Corners: q.Ordered(), Area: q.Area, ContourArea: q.ContourArea}
}

// ProcessResult is the frame_process response.
type ProcessResult struct {
	Frame      uint64     `json:"frame"`
	State      string     `json:"state"`
	ROI        Bounds     `json:"roi"`
	Quad       QuadResult `json:"quad"`
	Image      string     `json:"image,omitempty"`
	OutputPath string     `json:"output_path,omitempty"`
}

func (s *Server) handleFrameProcess(args json.RawMessage) (interface{}, error) {
	var a frameProcessArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	res, err := s.pipeline.Process(img)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := &ProcessResult{
		Frame: res.Frame,
		State: res.State.String(),
		ROI:   boundsOf(res.ROI),
		Quad:  quadResultOf(res.Quad),
	}
	if a.IncludeImage {
		if out.Image, err = imaging.EncodePNGBase64(res.Image); err != nil {
			return nil, err
		}
	}
	if a.OutputPath != "" {
		if err := imaging.SavePNG(a.OutputPath, res.Image); err != nil {
			return nil, err
		}
		out.OutputPath = a.OutputPath
	}
	return out, nil
}

type frameEdgesArgs struct {
	roiArgs
	Path         string `json:"path"`
	IncludeImage *bool  `json:"include_image"`
}

// EdgesResult is the frame_edges response.
type EdgesResult struct {
	ROI        Bounds `json:"roi"`
	EdgePixels int    `json:"edge_pixels"`
	Image      string `json:"image,omitempty"`
}

func (s *Server) handleFrameEdges(args json.RawMessage) (interface{}, error) {
	var a frameEdgesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	roi, err := s.resolveROI(a.roiArgs, img)
	if err != nil {
		return nil, err
	}
	edges, _, err := s.detect(img, roi)
	if err != nil {
		return nil, err
	}

	out := &EdgesResult{ROI: boundsOf(roi), EdgePixels: edges.Count()}
	if a.IncludeImage == nil || *a.IncludeImage {
		if out.Image, err = imaging.EncodePNGBase64(edges.Gray); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type frameContoursArgs struct {
	roiArgs
	Path  string `json:"path"`
	Limit int    `json:"limit"`
}

// ContourInfo describes one external contour.
type ContourInfo struct {
	Points int     `json:"points"`
	Area   float64 `json:"area"`
	Bounds Bounds  `json:"bounds"`
}

// ContoursResult is the frame_contours response.
type ContoursResult struct {
	ROI      Bounds        `json:"roi"`
	Count    int           `json:"count"`
	Contours []ContourInfo `json:"contours"`
	Quad     QuadResult    `json:"quad"`
}

func (s *Server) handleFrameContours(args json.RawMessage) (interface{}, error) {
	var a frameContoursArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Limit <= 0 {
		a.Limit = 20
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	roi, err := s.resolveROI(a.roiArgs, img)
	if err != nil {
		return nil, err
	}
	edges, quad, err := s.detect(img, roi)
	if err != nil {
		return nil, err
	}

	contours := detection.FindContours(edges)
	infos := make([]ContourInfo, 0, len(contours))
	for _, c := range contours {
		infos = append(infos, ContourInfo{Points: len(c), Area: c.Area(), Bounds: boundsOf(c.Bounds())})
	}
	sort.SliceStable(infos, func(i, j int) bool { return infos[i].Area > infos[j].Area })
	if len(infos) > a.Limit {
		infos = infos[:a.Limit]
	}

	return &ContoursResult{
		ROI:      boundsOf(roi),
		Count:    len(contours),
		Contours: infos,
		Quad:     quadResultOf(quad),
	}, nil
}

func (s *Server) handleFrameSetROI(args json.RawMessage) (interface{}, error) {
	var a roiArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	r, ok, err := a.rect()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errPartialROI
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pipeline.SetROI(r); err != nil {
		return nil, err
	}
	return s.stateLocked(), nil
}

func (s *Server) handleFrameRecalibrate() (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline.Recalibrate()
	return s.stateLocked(), nil
}

func (s *Server) handleFrameState() (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(), nil
}

// StateResult is the response of the state-changing tools and frame_state.
type StateResult struct {
	Session   string `json:"session"`
	State     string `json:"state"`
	ROI       Bounds `json:"roi"`
	Locked    bool   `json:"locked"`
	Pinned    bool   `json:"pinned"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	BlockSize int    `json:"block_size"`
}

// stateLocked must be called with s.mu held.
func (s *Server) stateLocked() *StateResult {
	st := s.pipeline.Calibration()
	return &StateResult{
		Session:   s.pipeline.Session(),
		State:     s.pipeline.State().String(),
		ROI:       boundsOf(st.ROI),
		Locked:    st.Locked,
		Pinned:    st.Pinned,
		Width:     st.Width,
		Height:    st.Height,
		BlockSize: st.BlockSize,
	}
}
