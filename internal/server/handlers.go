package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/ic-marking-mcp/internal/imaging"
	"github.com/ironsheep/ic-marking-mcp/internal/ocr"
	"github.com/ironsheep/ic-marking-mcp/internal/pipeline"
	"github.com/ironsheep/ic-marking-mcp/internal/similarity"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "marking_analyze").
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
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	log := s.log.WithFields(logrus.Fields{
		"tool":       params.Name,
		"request_id": uuid.NewString(),
	})
	start := time.Now()

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	elapsed := time.Since(start)
	if err != nil {
		log.WithError(err).WithField("duration", elapsed).Warn("tool call failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}
	log.WithField("duration", elapsed).Info("tool call complete")

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
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Decodes the image, if the tool takes one
//  4. Calls the pipeline service
//  5. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	case "marking_preprocess":
		return s.handlePreprocess(ctx, args)

	case "marking_extract_text":
		return s.handleExtractText(ctx, args)
	case "marking_extract_ensemble":
		return s.handleExtractEnsemble(ctx, args)

	case "marking_similarity":
		return s.handleSimilarity(args)
	case "marking_best_matches":
		return s.handleBestMatches(args)

	case "marking_analyze":
		return s.handleAnalyze(ctx, args)
	case "marking_health":
		return s.svc.Health(), nil

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
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Image Arguments ===

// imageSource is embedded by every tool that takes an image.
type imageSource struct {
	Path        string `json:"path"`
	ImageBase64 string `json:"image_base64"`
}

func (src imageSource) load() (image.Image, error) {
	switch {
	case src.Path != "" && src.ImageBase64 != "":
		return nil, errors.New("give either path or image_base64, not both")
	case src.Path != "":
		img, _, err := imaging.LoadImage(src.Path)
		return img, err
	case src.ImageBase64 != "":
		img, _, err := imaging.DecodeBase64Image(src.ImageBase64)
		return img, err
	}
	return nil, errors.New("path or image_base64 is required")
}

// targetSize returns the requested bounding box, or nil when neither side
// was given.
func targetSize(width, height int) (*imaging.Size, error) {
	if width == 0 && height == 0 {
		return nil, nil
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("target size %dx%d: both sides must be positive", width, height)
	}
	return &imaging.Size{Width: width, Height: height}, nil
}

func encodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode PNG: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// === Preprocessing ===

type preprocessArgs struct {
	imageSource
	AutoEnhance        *bool `json:"auto_enhance"`
	TargetWidth        int   `json:"target_width"`
	TargetHeight       int   `json:"target_height"`
	ReturnIntermediate bool  `json:"return_intermediate"`
	IncludeImage       *bool `json:"include_image"`
}

type stageResult struct {
	Step        string `json:"step"`
	ImageBase64 string `json:"image_base64"`
}

type preprocessResult struct {
	Steps         []string               `json:"steps"`
	Metrics       imaging.QualityMetrics `json:"metrics"`
	Width         int                    `json:"width"`
	Height        int                    `json:"height"`
	ImageBase64   string                 `json:"image_base64,omitempty"`
	Intermediates []stageResult          `json:"intermediates,omitempty"`
}

func (s *Server) handlePreprocess(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a preprocessArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := a.load()
	if err != nil {
		return nil, err
	}

	cfg := imaging.DefaultProcessConfig()
	cfg.AutoEnhance = boolOr(a.AutoEnhance, true)
	cfg.ReturnIntermediate = a.ReturnIntermediate
	if size, err := targetSize(a.TargetWidth, a.TargetHeight); err != nil {
		return nil, err
	} else if size != nil {
		cfg.TargetSize = size
	}

	processed, err := s.svc.ProcessImage(ctx, img, cfg)
	if err != nil {
		return nil, err
	}

	out := preprocessResult{
		Steps:   processed.Steps,
		Metrics: processed.Metrics,
		Width:   processed.Image.Bounds().Dx(),
		Height:  processed.Image.Bounds().Dy(),
	}
	if boolOr(a.IncludeImage, true) {
		if out.ImageBase64, err = encodePNGBase64(processed.Image); err != nil {
			return nil, err
		}
	}
	for _, stage := range processed.Intermediates {
		encoded, err := encodePNGBase64(stage.Image)
		if err != nil {
			return nil, err
		}
		out.Intermediates = append(out.Intermediates, stageResult{Step: stage.Step, ImageBase64: encoded})
	}
	return out, nil
}

// === Text Extraction ===

type extractArgs struct {
	imageSource
	Engine        string   `json:"engine"`
	MinConfidence *float64 `json:"min_confidence"`
	Preprocess    *bool    `json:"preprocess"`
}

// prepare decodes the image and, unless disabled, runs the default
// preprocessing on it.
func (s *Server) prepare(ctx context.Context, a extractArgs) (image.Image, float64, error) {
	minConfidence := s.svc.MinConfidence()
	if a.MinConfidence != nil {
		minConfidence = *a.MinConfidence
	}

	img, err := a.load()
	if err != nil {
		return nil, 0, err
	}
	if !boolOr(a.Preprocess, true) {
		return img, minConfidence, nil
	}
	processed, err := s.svc.ProcessImage(ctx, img, imaging.DefaultProcessConfig())
	if err != nil {
		return nil, 0, err
	}
	return processed.Image, minConfidence, nil
}

func (s *Server) handleExtractText(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a extractArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	var engine ocr.EngineKind
	if a.Engine != "" {
		kind, err := ocr.ParseEngineKind(a.Engine)
		if err != nil {
			return nil, err
		}
		engine = kind
	}

	img, minConfidence, err := s.prepare(ctx, a)
	if err != nil {
		return nil, err
	}
	return s.svc.ExtractText(ctx, img, engine, minConfidence), nil
}

func (s *Server) handleExtractEnsemble(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a extractArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, minConfidence, err := s.prepare(ctx, a)
	if err != nil {
		return nil, err
	}
	return s.svc.ExtractWithEnsemble(ctx, img, minConfidence), nil
}

// === Matching ===

// canonicalMethod names the method a request actually ran with.
func canonicalMethod(name string) similarity.Method {
	m, err := similarity.ParseMethod(name)
	if err != nil {
		return similarity.DefaultMethod
	}
	return m
}

type similarityArgs struct {
	Text1  string `json:"text1"`
	Text2  string `json:"text2"`
	Method string `json:"method"`
}

type similarityResult struct {
	Score  float64           `json:"score"`
	Method similarity.Method `json:"method"`
}

func (s *Server) handleSimilarity(args json.RawMessage) (interface{}, error) {
	var a similarityArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return similarityResult{
		Score:  s.svc.CalculateSimilarity(a.Text1, a.Text2, a.Method),
		Method: canonicalMethod(a.Method),
	}, nil
}

type bestMatchesArgs struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
	Method     string   `json:"method"`
	Limit      *int     `json:"limit"`
}

type bestMatchesResult struct {
	Matches []similarity.Match `json:"matches"`
	Method  similarity.Method  `json:"method"`
}

func (s *Server) handleBestMatches(args json.RawMessage) (interface{}, error) {
	var a bestMatchesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	limit := pipeline.DefaultMatchLimit
	if a.Limit != nil {
		limit = *a.Limit
	}
	return bestMatchesResult{
		Matches: s.svc.FindBestMatches(a.Query, a.Candidates, a.Method, limit),
		Method:  canonicalMethod(a.Method),
	}, nil
}

// === Analysis ===

type analyzeArgs struct {
	imageSource
	InspectionID  string   `json:"inspection_id"`
	Engine        string   `json:"engine"`
	Ensemble      bool     `json:"ensemble"`
	MinConfidence *float64 `json:"min_confidence"`
	AutoEnhance   *bool    `json:"auto_enhance"`
	TargetWidth   int      `json:"target_width"`
	TargetHeight  int      `json:"target_height"`
	References    []string `json:"references"`
	Method        string   `json:"method"`
	Limit         int      `json:"limit"`
}

func (s *Server) handleAnalyze(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a analyzeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	opts := pipeline.AnalyzeOptions{
		InspectionID:   a.InspectionID,
		Ensemble:       a.Ensemble,
		MinConfidence:  a.MinConfidence,
		DisableEnhance: !boolOr(a.AutoEnhance, true),
		References:     a.References,
		Method:         a.Method,
		Limit:          a.Limit,
	}
	if a.Engine != "" {
		kind, err := ocr.ParseEngineKind(a.Engine)
		if err != nil {
			return nil, err
		}
		opts.Engine = kind
	}
	size, err := targetSize(a.TargetWidth, a.TargetHeight)
	if err != nil {
		return nil, err
	}
	opts.TargetSize = size

	img, err := a.load()
	if err != nil {
		return nil, err
	}
	return s.svc.Analyze(ctx, img, opts)
}
