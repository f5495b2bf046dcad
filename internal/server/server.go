package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/ironsheep/filmreader/internal/config"
	"github.com/ironsheep/filmreader/internal/imaging"
	"github.com/ironsheep/filmreader/internal/pipeline"
)

// Server handles MCP protocol communication
type Server struct {
	cfg     config.Config
	log     *slog.Logger
	cache   *imaging.FrameCache
	version string
	in      io.Reader
	out     io.Writer

	// mu serializes access to the pipeline, which keeps calibration state
	// across tool calls.
	mu       sync.Mutex
	pipeline *pipeline.Pipeline
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *Server) {
		s.in, s.out = in, out
	}
}

// WithVersion sets the version reported in the initialize handshake.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// New creates a new MCP server instance around a pipeline built from cfg.
// popts are passed to pipeline.New.
func New(cfg config.Config, popts []pipeline.Option, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	s := &Server{
		cfg:     cfg,
		log:     config.Discard(),
		cache:   imaging.NewFrameCache(),
		version: "dev",
		in:      os.Stdin,
		out:     os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}

	p, err := pipeline.New(cfg, append([]pipeline.Option{pipeline.WithLogger(s.log)}, popts...)...)
	if err != nil {
		return nil, err
	}
	s.pipeline = p
	return s, nil
}

// Run serves requests until the input is exhausted or ctx is cancelled.
// Cancellation returns immediately even while a read is blocked; an input
// that implements io.Closer is closed so the reader goroutine exits.
func (s *Server) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lines := make(chan []byte)
	done := make(chan error, 1)
	go s.readLines(ctx, lines, done)

	encoder := json.NewEncoder(s.out)
	s.log.Info("serving MCP over stdio", "version", s.version, "session", s.pipeline.Session())

	for {
		select {
		case <-ctx.Done():
			s.closeInput()
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := <-done; err != nil {
					return fmt.Errorf("scanner error: %w", err)
				}
				return nil
			}
			if err := ctx.Err(); err != nil {
				s.closeInput()
				return err
			}

			var req MCPRequest
			if err := json.Unmarshal(line, &req); err != nil {
				s.log.Warn("failed to parse request", "error", err)
				continue
			}

			resp := s.handleRequest(&req)
			if resp != nil {
				if err := encoder.Encode(resp); err != nil {
					s.log.Error("failed to encode response", "error", err)
				}
			}
		}
	}
}

// closeInput closes the input when it can be closed, unblocking readLines.
func (s *Server) closeInput() {
	if c, ok := s.in.(io.Closer); ok {
		c.Close()
	}
}

// readLines sends each non-empty input line on lines, then closes it and
// reports the scanner error on done.
func (s *Server) readLines(ctx context.Context, lines chan<- []byte, done chan<- error) {
	defer close(lines)

	scanner := bufio.NewScanner(s.in)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		line := append([]byte(nil), scanner.Bytes()...)
		select {
		case lines <- line:
		case <-ctx.Done():
			done <- nil
			return
		}
	}
	done <- scanner.Err()
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	s.log.Debug("request", "method", req.Method, "id", req.ID)

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "filmreader",
				"version": s.version,
			},
		},
	}
}
