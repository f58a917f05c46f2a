// Package server implements the MCP (Model Context Protocol) server for IC
// marking verification.
//
// The server speaks JSON-RPC 2.0 over stdio:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Preprocessing:
//   - marking_preprocess: Normalize a photograph into an OCR-ready raster
//
// Text extraction:
//   - marking_extract_text: Read the marking with one engine (with fallback)
//   - marking_extract_ensemble: Read with every engine and keep the best
//
// Matching:
//   - marking_similarity: Score two texts
//   - marking_best_matches: Rank candidate part numbers against a text
//
// Combined:
//   - marking_analyze: Preprocess, read and match in one call
//   - marking_health: Report engine and worker status
//
// Tools that take an image accept either "path" (a file readable by the
// server) or "image_base64" (raw base64 or a data URL). Images are decoded
// per call and never cached.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// OCR failures are not tool errors: the extraction tools always succeed and
// report engine failures in the result's "error" field.
//
// # Usage
//
//	srv := server.New(svc, server.Options{Version: version, Logger: log})
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
