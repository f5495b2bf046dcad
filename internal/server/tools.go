package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the frame image (PNG, JPEG or GIF)",
	}
}

func roiProperties(required bool) map[string]interface{} {
	suffix := ""
	if !required {
		suffix = ". Omit all four to use the pipeline's current region"
	}
	return map[string]interface{}{
		"x1": map[string]interface{}{
			"type":        "integer",
			"description": "Left edge X coordinate (0-based)" + suffix,
		},
		"y1": map[string]interface{}{
			"type":        "integer",
			"description": "Top edge Y coordinate (0-based)" + suffix,
		},
		"x2": map[string]interface{}{
			"type":        "integer",
			"description": "Right edge X coordinate (exclusive)" + suffix,
		},
		"y2": map[string]interface{}{
			"type":        "integer",
			"description": "Bottom edge Y coordinate (exclusive)" + suffix,
		},
	}
}

func emptySchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	edgeProps := roiProperties(false)
	edgeProps["path"] = pathProperty()
	edgeProps["include_image"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Return the edge map as base64 PNG. Default true",
		"default":     true,
	}

	contourProps := roiProperties(false)
	contourProps["path"] = pathProperty()
	contourProps["limit"] = map[string]interface{}{
		"type":        "integer",
		"description": "Maximum number of contours to describe, largest first. Default 20",
		"default":     20,
	}

	return []Tool{
		{
			Name:        "frame_load",
			Description: "Load a frame file and return its dimensions, format and the adaptive block size used for its height.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "frame_process",
			Description: "Run a frame through the border detection pipeline. Returns the detected quad (corners ordered top-left, top-right, bottom-right, bottom-left), the searched region and the pipeline state. Calibration carries over between calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"include_image": map[string]interface{}{
						"type":        "boolean",
						"description": "Return the composited preview as base64 PNG. Default false",
						"default":     false,
					},
					"output_path": map[string]interface{}{
						"type":        "string",
						"description": "Optional path to write the composited preview PNG to",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "frame_edges",
			Description: "Compute the edge map of a frame inside a region with the configured detection backend.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": edgeProps,
				"required":   []string{"path"},
			},
		},
		{
			Name:        "frame_contours",
			Description: "Trace the external contours of a frame's edge map and report their sizes, areas and bounds, plus the quad they reduce to.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": contourProps,
				"required":   []string{"path"},
			},
		},
		{
			Name:        "frame_set_roi",
			Description: "Pin the search region. It must lie inside the last processed frame and stays until frame_recalibrate or a change in frame size.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": roiProperties(true),
				"required":   []string{"x1", "y1", "x2", "y2"},
			},
		},
		{
			Name:        "frame_recalibrate",
			Description: "Drop calibration and any pinned region. The next frame is searched from the full frame again.",
			InputSchema: emptySchema(),
		},
		{
			Name:        "frame_state",
			Description: "Report the pipeline lifecycle state and the calibration snapshot.",
			InputSchema: emptySchema(),
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
