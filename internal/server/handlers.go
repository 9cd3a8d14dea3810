package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/ironsheep/label-ocr-mcp/internal/allergen"
	"github.com/ironsheep/label-ocr-mcp/internal/detection"
	"github.com/ironsheep/label-ocr-mcp/internal/errs"
	"github.com/ironsheep/label-ocr-mcp/internal/imaging"
	"github.com/ironsheep/label-ocr-mcp/internal/ocr"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "label_scan").
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
// Scan failures carry their error code and request ID in the error data.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Warnw("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", errorData(err))
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
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(args)

	case "label_scan":
		return s.handleLabelScan(ctx, args)
	case "label_detect_regions":
		return s.handleLabelDetectRegions(ctx, args)
	case "label_status":
		return s.handleLabelStatus()

	case "label_flag_allergens":
		return s.handleFlagAllergens(args)
	case "allergen_catalog":
		return s.catalog, nil

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) *MCPResponse {
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

// errorData describes err for the JSON-RPC error data field. Errors from
// the scanner carry their code, and the request ID once a scan has started.
func errorData(err error) interface{} {
	var scanErr *errs.ScanError
	if errors.As(err, &scanErr) {
		return map[string]interface{}{
			"code":       scanErr.Code,
			"request_id": scanErr.RequestID,
			"detail":     err.Error(),
		}
	}
	if errors.Is(err, errs.ErrNotInitialized) {
		return map[string]interface{}{
			"code":   errs.CodeNotInitialized,
			"detail": err.Error(),
		}
	}
	return err.Error()
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// unmarshalArgs decodes tool arguments, treating absent arguments as {}.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// scanContext applies the configured scan timeout.
func (s *Server) scanContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.ScanTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.ScanTimeout)
	}
	return context.WithCancel(ctx)
}

// loadForScan checks the scanner and loads the image at path.
func (s *Server) loadForScan(path string) (image.Image, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}
	if s.scanner == nil || !s.scanner.Ready() {
		return nil, fmt.Errorf("label scanner is still loading: %w", errs.ErrNotInitialized)
	}
	return s.cache.Load(path)
}

// === Image Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

// === Label Scan Handlers ===

type labelScanArgs struct {
	Path      string   `json:"path"`
	Allergens []string `json:"allergens"`
}

// LabelScanResult is the label_scan tool output.
type LabelScanResult struct {
	RequestID      string             `json:"request_id"`
	Text           string             `json:"text"`
	Lines          []string           `json:"lines,omitempty"`
	Fallback       bool               `json:"fallback"`
	RegionCount    int                `json:"region_count"`
	Regions        []detection.Region `json:"regions"`
	SkippedRegions int                `json:"skipped_regions,omitempty"`
	DurationMs     int64              `json:"duration_ms"`

	// AllergensChecked is the expanded selection; AllergensFound the
	// entries of it that occur in Text.
	AllergensChecked []string `json:"allergens_checked,omitempty"`
	AllergensFound   []string `json:"allergens_found"`
}

func (s *Server) handleLabelScan(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a labelScanArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.loadForScan(a.Path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.scanContext(ctx)
	defer cancel()

	res, err := s.scanner.ScanQueued(ctx, img)
	if err != nil {
		return nil, err
	}

	checked := s.catalog.Expand(a.Allergens)
	found := allergen.Find(res.Text, checked)
	if found == nil {
		found = []string{}
	}
	regions := res.Regions
	if regions == nil {
		regions = []detection.Region{}
	}

	return &LabelScanResult{
		RequestID:        res.RequestID,
		Text:             res.Text,
		Lines:            res.Lines,
		Fallback:         res.Fallback,
		RegionCount:      len(regions),
		Regions:          regions,
		SkippedRegions:   res.Skipped,
		DurationMs:       res.Duration.Milliseconds(),
		AllergensChecked: checked,
		AllergensFound:   found,
	}, nil
}

type detectRegionsArgs struct {
	Path      string  `json:"path"`
	Overlay   bool    `json:"overlay"`
	Scale     float64 `json:"scale"`
	Thickness int     `json:"thickness"`
}

// DetectRegionsResult is the label_detect_regions tool output.
type DetectRegionsResult struct {
	Count   int                   `json:"count"`
	Regions []detection.Region    `json:"regions"`
	Overlay *imaging.EncodedImage `json:"overlay,omitempty"`
}

func (s *Server) handleLabelDetectRegions(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a detectRegionsArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	if a.Thickness == 0 {
		a.Thickness = 2
	}
	img, err := s.loadForScan(a.Path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.scanContext(ctx)
	defer cancel()

	regions, err := s.scanner.Regions(ctx, img)
	if err != nil {
		return nil, err
	}
	if regions == nil {
		regions = []detection.Region{}
	}

	result := &DetectRegionsResult{Count: len(regions), Regions: regions}
	if a.Overlay {
		rects := make([]image.Rectangle, len(regions))
		for i, r := range regions {
			rects[i] = r.Rect().Add(img.Bounds().Min)
		}
		encoded, err := imaging.EncodePNG(imaging.DrawRegions(img, rects, a.Thickness), a.Scale)
		if err != nil {
			return nil, fmt.Errorf("failed to render overlay: %w", err)
		}
		result.Overlay = encoded
	}
	return result, nil
}

// StatusResult is the label_status tool output.
type StatusResult struct {
	Ready         bool   `json:"ready"`
	Backend       string `json:"backend"`
	Version       string `json:"version"`
	CachedImages  int    `json:"cached_images"`
	AllergenCount int    `json:"allergen_count"`

	// OCR describes the Tesseract backend when it is in use.
	OCR *ocr.Info `json:"ocr,omitempty"`
}

func (s *Server) handleLabelStatus() (interface{}, error) {
	status := &StatusResult{
		Ready:         s.scanner != nil && s.scanner.Ready(),
		Backend:       s.opts.Backend,
		Version:       s.opts.Version,
		CachedImages:  s.cache.Len(),
		AllergenCount: len(s.catalog.Items()),
	}
	if s.opts.BackendInfo != nil {
		info := s.opts.BackendInfo.Info()
		status.OCR = &info
	}
	return status, nil
}

// === Allergen Handlers ===

type flagAllergensArgs struct {
	Text      string   `json:"text"`
	Allergens []string `json:"allergens"`
}

// FlagResult is the label_flag_allergens tool output.
type FlagResult struct {
	Checked []string `json:"checked"`
	Found   []string `json:"found"`
}

func (s *Server) handleFlagAllergens(args json.RawMessage) (interface{}, error) {
	var a flagAllergensArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if len(a.Allergens) == 0 {
		return nil, errors.New("allergens is required")
	}

	checked := s.catalog.Expand(a.Allergens)
	found := allergen.Find(a.Text, checked)
	if found == nil {
		found = []string{}
	}
	if checked == nil {
		checked = []string{}
	}
	return &FlagResult{Checked: checked, Found: found}, nil
}
