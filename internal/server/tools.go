package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// imageProperties returns the schema properties shared by tools that take an
// image, merged with extra.
func imageProperties(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the image file. Use this or image_base64.",
		},
		"image_base64": map[string]interface{}{
			"type":        "string",
			"description": "Base64-encoded image or data URL. Use this or path.",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

var (
	engineProperty = map[string]interface{}{
		"type":        "string",
		"enum":        []string{"easyocr", "tesseract"},
		"description": "OCR engine. Defaults to the configured primary engine.",
	}
	minConfidenceProperty = map[string]interface{}{
		"type":        "number",
		"description": "Discard words below this confidence (0-1). Defaults to the configured threshold, normally 0.1",
		"minimum":     0,
		"maximum":     1,
	}
	preprocessProperty = map[string]interface{}{
		"type":        "boolean",
		"description": "Preprocess the image before OCR. Default true",
		"default":     true,
	}
	methodProperty = map[string]interface{}{
		"type":        "string",
		"enum":        []string{"ratio", "partial_ratio", "token_sort", "token_set", "levenshtein"},
		"description": "Similarity method. Unknown names fall back to ratio. Default ratio",
		"default":     "ratio",
	}
	targetWidthProperty = map[string]interface{}{
		"type":        "integer",
		"description": "Shrink to fit this width (with target_height). Default 1024",
	}
	targetHeightProperty = map[string]interface{}{
		"type":        "integer",
		"description": "Shrink to fit this height (with target_width). Default 768",
	}
	autoEnhanceProperty = map[string]interface{}{
		"type":        "boolean",
		"description": "Apply CLAHE contrast enhancement. Default true",
		"default":     true,
	}
)

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Preprocessing
		{
			Name:        "marking_preprocess",
			Description: "Normalize a photograph of an IC package into an OCR-ready grayscale raster (denoise, contrast enhancement, sharpening) and report image quality metrics.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": imageProperties(map[string]interface{}{
					"auto_enhance":  autoEnhanceProperty,
					"target_width":  targetWidthProperty,
					"target_height": targetHeightProperty,
					"return_intermediate": map[string]interface{}{
						"type":        "boolean",
						"description": "Also return the raster after every step. Default false",
						"default":     false,
					},
					"include_image": map[string]interface{}{
						"type":        "boolean",
						"description": "Return the processed raster as base64 PNG. Default true",
						"default":     true,
					},
				}),
			},
		},

		// Text Extraction
		{
			Name:        "marking_extract_text",
			Description: "Read the marking text of an IC with one OCR engine. If it fails, the configured fallback engine is tried once. Engine failures are reported in the result, not as errors.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": imageProperties(map[string]interface{}{
					"engine":         engineProperty,
					"min_confidence": minConfidenceProperty,
					"preprocess":     preprocessProperty,
				}),
			},
		},
		{
			Name:        "marking_extract_ensemble",
			Description: "Read the marking text with every configured OCR engine in parallel and keep the most confident result. The other engines' readings are listed as alternatives.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": imageProperties(map[string]interface{}{
					"min_confidence": minConfidenceProperty,
					"preprocess":     preprocessProperty,
				}),
			},
		},

		// Matching
		{
			Name:        "marking_similarity",
			Description: "Score how similar two marking texts are, from 0 (unrelated or empty) to 1 (identical after upper-casing and whitespace normalization).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text1":  map[string]interface{}{"type": "string", "description": "First text"},
					"text2":  map[string]interface{}{"type": "string", "description": "Second text"},
					"method": methodProperty,
				},
				"required": []string{"text1", "text2"},
			},
		},
		{
			Name:        "marking_best_matches",
			Description: "Rank candidate part numbers by similarity to a text, best first.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{"type": "string", "description": "Text read from the part"},
					"candidates": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Candidate part numbers",
					},
					"method": methodProperty,
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of matches. Default 5",
						"default":     5,
					},
				},
				"required": []string{"query", "candidates"},
			},
		},

		// Combined
		{
			Name:        "marking_analyze",
			Description: "Verify an IC marking in one call: preprocess the photograph, read the marking and rank it against the expected part numbers.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": imageProperties(map[string]interface{}{
					"inspection_id": map[string]interface{}{
						"type":        "string",
						"description": "Identifier echoed in the result. A UUID is generated when omitted.",
					},
					"engine": engineProperty,
					"ensemble": map[string]interface{}{
						"type":        "boolean",
						"description": "Use every engine and keep the most confident reading. Default false",
						"default":     false,
					},
					"min_confidence": minConfidenceProperty,
					"auto_enhance":   autoEnhanceProperty,
					"target_width":   targetWidthProperty,
					"target_height":  targetHeightProperty,
					"references": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Expected part numbers",
					},
					"method": methodProperty,
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of matches. Default 5",
					},
				}),
			},
		},
		{
			Name:        "marking_health",
			Description: "Report the configured OCR engines, worker pool size and component status.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
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
