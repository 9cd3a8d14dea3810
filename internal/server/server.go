package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ironsheep/label-ocr-mcp/internal/allergen"
	"github.com/ironsheep/label-ocr-mcp/internal/detection"
	"github.com/ironsheep/label-ocr-mcp/internal/imaging"
	"github.com/ironsheep/label-ocr-mcp/internal/logging"
	"github.com/ironsheep/label-ocr-mcp/internal/ocr"
	"github.com/ironsheep/label-ocr-mcp/internal/pipeline"
)

// Scanner is the label pipeline as seen by the server. Full scans go
// through its single-worker queue.
type Scanner interface {
	Ready() bool
	ScanQueued(ctx context.Context, img image.Image) (*pipeline.Result, error)
	Regions(ctx context.Context, img image.Image) ([]detection.Region, error)
}

// BackendInfo reports the state of an OCR backend with external
// dependencies, such as the Tesseract recognizer.
type BackendInfo interface {
	Info() ocr.Info
}

// Options configures a Server.
type Options struct {
	// Scanner runs label scans. A nil Scanner makes the scan tools report
	// that the models are not loaded.
	Scanner Scanner

	// Catalog expands category names in allergen selections. Nil uses the
	// embedded catalog.
	Catalog *allergen.Catalog

	// ScanTimeout bounds each scan tool call. Zero means no limit.
	ScanTimeout time.Duration

	// Version and Backend are reported by initialize and label_status.
	Version string
	Backend string

	// BackendInfo, when set, adds the recognizer backend details to
	// label_status.
	BackendInfo BackendInfo
}

// Server handles MCP protocol communication
type Server struct {
	cache   *imaging.ImageCache
	scanner Scanner
	catalog *allergen.Catalog
	opts    Options
	log     *zap.SugaredLogger
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

// New creates a new MCP server instance
func New(opts Options) *Server {
	catalog := opts.Catalog
	log := logging.Named("server")
	if catalog == nil {
		c, err := allergen.Default()
		if err != nil {
			log.Errorw("allergen catalog unavailable", "error", err)
			c = &allergen.Catalog{}
		}
		catalog = c
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &Server{
		cache:   imaging.NewImageCache(),
		scanner: opts.Scanner,
		catalog: catalog,
		opts:    opts,
		log:     log,
	}
}

// Run serves MCP over stdin and stdout until stdin closes.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from r and writes responses to w.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.Warnw("failed to parse request", "error", err)
			if encErr := encoder.Encode(s.errorResponse(nil, -32700, "Parse error", err.Error())); encErr != nil {
				s.log.Errorw("failed to encode response", "error", encErr)
			}
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.log.Errorw("failed to encode response", "error", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
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
				"name":    "label-ocr-mcp",
				"version": s.opts.Version,
			},
		},
	}
}
