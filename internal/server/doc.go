// Package server implements the MCP (Model Context Protocol) server for
// food label scanning.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Logs go to stderr so they never interleave with protocol output.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_load: Load an image and get metadata
//   - label_scan: Read label text and flag selected allergens
//   - label_detect_regions: Find text regions, optionally with an overlay
//   - label_status: Model loading state and backend
//   - label_flag_allergens: Match allergens in arbitrary text
//   - allergen_catalog: List allergen categories
//
// # Model Loading
//
// The models load in the background after startup. Until they are ready,
// label_scan and label_detect_regions fail with a NOT_INITIALIZED code in
// the error data; the allergen tools work immediately.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: the Go error string, or for scanner failures an object with
//     code and detail (plus request_id once a scan has started)
package server
