// Package server exposes the frame pipeline as an MCP (Model Context
// Protocol) server.
//
// The server speaks JSON-RPC 2.0 over stdio, one request per line. Logs go
// to stderr; stdout carries only protocol messages.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Tools
//
//   - frame_load: Load a frame file and report its metadata
//   - frame_process: Run a frame through the pipeline and report the border
//   - frame_edges: Edge map of a frame as base64 PNG
//   - frame_contours: External contours of a frame's edge map
//   - frame_set_roi: Pin the search region
//   - frame_recalibrate: Drop calibration and pinned regions
//   - frame_state: Pipeline lifecycle and calibration snapshot
//
// One pipeline lives for the whole session, so calibration carries over
// between frame_process calls the same way it does between video frames.
// Tool calls are serialized.
//
// # Error Handling
//
// Tool failures are returned as JSON-RPC errors with code -32000 and the Go
// error string in data. Malformed tools/call params get -32602.
package server
