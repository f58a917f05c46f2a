package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ironsheep/ic-marking-mcp/internal/imaging"
	"github.com/ironsheep/ic-marking-mcp/internal/ocr"
	"github.com/ironsheep/ic-marking-mcp/internal/pipeline"
	"github.com/ironsheep/ic-marking-mcp/internal/similarity"
)

// createTestPhoto creates a textured color image.
func createTestPhoto(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(30 + (x*9+y*5)%150)
			img.Set(x, y, color.RGBA{R: v, G: v, B: v / 3, A: 255})
		}
	}
	return img
}

func encodeTestPNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

// createTestImageFile writes a test photo and returns its path
func createTestImageFile(t *testing.T, width, height int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "marking.png")
	if err := os.WriteFile(path, encodeTestPNG(t, createTestPhoto(width, height)), 0o600); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}
	return path
}

func testImageBase64(t *testing.T, width, height int) string {
	t.Helper()
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(encodeTestPNG(t, createTestPhoto(width, height)))
}

// callTool runs a tool directly and fails the test on error.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) interface{} {
	t.Helper()
	raw, _ := json.Marshal(args)
	result, err := s.executeTool(context.Background(), name, raw)
	if err != nil {
		t.Fatalf("%s failed: %v", name, err)
	}
	return result
}

func toolError(s *Server, name string, args map[string]interface{}) error {
	raw, _ := json.Marshal(args)
	_, err := s.executeTool(context.Background(), name, raw)
	return err
}

func TestHandleToolsCall_ResponseShape(t *testing.T) {
	s := newTestServer(t, nil, nil)
	params, _ := json.Marshal(map[string]interface{}{
		"name":      "marking_similarity",
		"arguments": map[string]interface{}{"text1": "NE555", "text2": "ne555"},
	})

	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}

	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("content: got %v", content)
	}
	var decoded similarityResult
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &decoded); err != nil {
		t.Fatalf("content text is not JSON: %v", err)
	}
	if decoded.Score != 1 || decoded.Method != similarity.Ratio {
		t.Errorf("got %+v, want score 1 with ratio", decoded)
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	s := newTestServer(t, nil, nil)

	tests := []struct {
		name     string
		params   string
		wantCode int
	}{
		{"invalid params", `["not", "an", "object"]`, -32602},
		{"unknown tool", `{"name":"marking_locate","arguments":{}}`, -32000},
		{"missing image", `{"name":"marking_preprocess","arguments":{}}`, -32000},
		{"bad arguments", `{"name":"marking_similarity","arguments":{"text1":5}}`, -32000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 9, Method: "tools/call", Params: json.RawMessage(tt.params)})
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("got %+v, want code %d", resp.Error, tt.wantCode)
			}
		})
	}
}

func TestImageSource(t *testing.T) {
	s := newTestServer(t, nil, nil)
	path := createTestImageFile(t, 20, 10)

	tests := []struct {
		name    string
		args    map[string]interface{}
		wantErr string
	}{
		{"neither", map[string]interface{}{}, "required"},
		{"both", map[string]interface{}{"path": path, "image_base64": testImageBase64(t, 4, 4)}, "not both"},
		{"missing file", map[string]interface{}{"path": filepath.Join(t.TempDir(), "absent.png")}, "absent.png"},
		{"bad base64", map[string]interface{}{"image_base64": "%%%"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := toolError(s, "marking_preprocess", tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}

	var invalid *imaging.InvalidInputError
	if err := toolError(s, "marking_analyze", map[string]interface{}{"image_base64": "%%%"}); !errors.As(err, &invalid) {
		t.Errorf("bad base64: got %v, want *InvalidInputError", err)
	}
}

func TestPreprocess(t *testing.T) {
	s := newTestServer(t, nil, nil)

	result := callTool(t, s, "marking_preprocess", map[string]interface{}{
		"path":                createTestImageFile(t, 120, 60),
		"target_width":        60,
		"target_height":       60,
		"return_intermediate": true,
	}).(preprocessResult)

	wantSteps := []string{imaging.StepGrayscale, "resize_to_60x30", imaging.StepBilateral, imaging.StepCLAHE, imaging.StepSharpen}
	if !reflect.DeepEqual(result.Steps, wantSteps) {
		t.Errorf("Steps: got %v, want %v", result.Steps, wantSteps)
	}
	if result.Width != 60 || result.Height != 30 {
		t.Errorf("size: got %dx%d, want 60x30", result.Width, result.Height)
	}
	if len(result.Intermediates) != len(wantSteps) {
		t.Fatalf("Intermediates: got %d, want %d", len(result.Intermediates), len(wantSteps))
	}
	if result.Intermediates[1].Step != "resize_to_60x30" {
		t.Errorf("second intermediate: got %q", result.Intermediates[1].Step)
	}

	raw, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("image_base64 is not base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("image_base64 is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 60 || img.Bounds().Dy() != 30 {
		t.Errorf("encoded image: got %v", img.Bounds())
	}
}

func TestPreprocess_Options(t *testing.T) {
	s := newTestServer(t, nil, nil)

	result := callTool(t, s, "marking_preprocess", map[string]interface{}{
		"image_base64":  testImageBase64(t, 40, 20),
		"auto_enhance":  false,
		"include_image": false,
	}).(preprocessResult)

	wantSteps := []string{imaging.StepGrayscale, imaging.StepBilateral, imaging.StepSharpen}
	if !reflect.DeepEqual(result.Steps, wantSteps) {
		t.Errorf("Steps: got %v, want %v", result.Steps, wantSteps)
	}
	if result.ImageBase64 != "" || result.Intermediates != nil {
		t.Error("image and intermediates should be omitted")
	}

	if err := toolError(s, "marking_preprocess", map[string]interface{}{
		"image_base64": testImageBase64(t, 4, 4),
		"target_width": 100,
	}); err == nil {
		t.Error("expected error for a target size with only one side")
	}
}

func TestExtractText(t *testing.T) {
	s := newTestServer(t, nil, nil)
	img := testImageBase64(t, 40, 20)

	tests := []struct {
		name       string
		args       map[string]interface{}
		wantText   string
		wantEngine string
	}{
		{"primary", map[string]interface{}{}, "NE555P", "easyocr"},
		{"explicit engine", map[string]interface{}{"engine": "Tesseract"}, "NE555", "tesseract"},
		{"no preprocessing", map[string]interface{}{"preprocess": false}, "NE555P", "easyocr"},
		{"high min confidence", map[string]interface{}{"min_confidence": 0.95}, "", "easyocr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.args["image_base64"] = img
			r := callTool(t, s, "marking_extract_text", tt.args).(*ocr.OCRResult)
			if r.Text != tt.wantText || r.EngineUsed != tt.wantEngine {
				t.Errorf("got %q from %q, want %q from %q", r.Text, r.EngineUsed, tt.wantText, tt.wantEngine)
			}
		})
	}

	if err := toolError(s, "marking_extract_text", map[string]interface{}{"image_base64": img, "engine": "paddle"}); err == nil {
		t.Error("expected error for unknown engine")
	}
}

func TestExtractText_Fallback(t *testing.T) {
	s := newTestServer(t, &stubEngine{kind: ocr.EasyOCR, err: errors.New("sidecar unreachable")}, nil)

	r := callTool(t, s, "marking_extract_text", map[string]interface{}{"image_base64": testImageBase64(t, 40, 20)}).(*ocr.OCRResult)
	if r.Text != "NE555" || r.EngineUsed != "tesseract" || r.Error != "" {
		t.Errorf("got %+v, want the fallback's reading", r)
	}
}

func TestExtractText_TotalFailure(t *testing.T) {
	s := newTestServer(t,
		&stubEngine{kind: ocr.EasyOCR, err: errors.New("sidecar unreachable")},
		&stubEngine{kind: ocr.Tesseract, err: errors.New("no tessdata")},
	)

	r := callTool(t, s, "marking_extract_text", map[string]interface{}{"image_base64": testImageBase64(t, 40, 20)}).(*ocr.OCRResult)
	if r.EngineUsed != ocr.EngineNone || !strings.Contains(r.Error, "sidecar unreachable") || !strings.Contains(r.Error, "no tessdata") {
		t.Errorf("got %+v", r)
	}
}

func TestExtractEnsemble(t *testing.T) {
	s := newTestServer(t, nil, nil)

	r := callTool(t, s, "marking_extract_ensemble", map[string]interface{}{"image_base64": testImageBase64(t, 40, 20)}).(*ocr.OCRResult)
	if r.Text != "NE555P" || r.EngineUsed != ocr.EngineEnsemble || r.SelectedEngine != "easyocr" {
		t.Errorf("got %q from %q selecting %q", r.Text, r.EngineUsed, r.SelectedEngine)
	}
	if !reflect.DeepEqual(r.Alternatives, []string{"NE555P", "NE555"}) {
		t.Errorf("Alternatives: got %v", r.Alternatives)
	}
}

func TestSimilarity(t *testing.T) {
	s := newTestServer(t, nil, nil)

	r := callTool(t, s, "marking_similarity", map[string]interface{}{
		"text1": "STM32F103C8T6", "text2": "STM32F103C8T7", "method": "levenshtein",
	}).(similarityResult)
	if r.Method != similarity.Levenshtein || r.Score < 0.92 || r.Score > 0.93 {
		t.Errorf("got %+v, want about 0.923 with levenshtein", r)
	}

	r = callTool(t, s, "marking_similarity", map[string]interface{}{"text1": "A", "text2": "A", "method": "soundex"}).(similarityResult)
	if r.Method != similarity.DefaultMethod || r.Score != 1 {
		t.Errorf("unknown method: got %+v", r)
	}
}

func TestBestMatches(t *testing.T) {
	s := newTestServer(t, nil, nil)
	candidates := []string{"LM358", "NE556", "NE555", "", "NA555", "NE5532", "TL072"}

	r := callTool(t, s, "marking_best_matches", map[string]interface{}{
		"query": "ne555", "candidates": candidates,
	}).(bestMatchesResult)
	if len(r.Matches) != 5 {
		t.Fatalf("default limit: got %d matches, want 5", len(r.Matches))
	}
	if r.Matches[0].Text != "NE555" || r.Matches[0].Index != 2 || r.Matches[0].Score != 1 {
		t.Errorf("top match: got %+v", r.Matches[0])
	}

	r = callTool(t, s, "marking_best_matches", map[string]interface{}{
		"query": "ne555", "candidates": candidates, "limit": 0,
	}).(bestMatchesResult)
	if r.Matches == nil || len(r.Matches) != 0 {
		t.Errorf("limit 0: got %v, want empty", r.Matches)
	}
}

func TestAnalyze(t *testing.T) {
	s := newTestServer(t, nil, nil)

	a := callTool(t, s, "marking_analyze", map[string]interface{}{
		"path":          createTestImageFile(t, 80, 40),
		"inspection_id": "lot-42",
		"references":    []string{"LM358", "NE555P"},
	}).(*pipeline.Analysis)

	if a.InspectionID != "lot-42" {
		t.Errorf("InspectionID: got %q", a.InspectionID)
	}
	if a.OCR.Text != "NE555P" || a.BestMatch == nil || a.BestMatch.Text != "NE555P" || a.BestMatch.Score != 1 {
		t.Errorf("got OCR %q best %+v", a.OCR.Text, a.BestMatch)
	}

	a = callTool(t, s, "marking_analyze", map[string]interface{}{
		"image_base64": testImageBase64(t, 80, 40),
		"ensemble":     true,
	}).(*pipeline.Analysis)
	if a.OCR.EngineUsed != ocr.EngineEnsemble || a.InspectionID == "" {
		t.Errorf("ensemble: got %q id %q", a.OCR.EngineUsed, a.InspectionID)
	}

	for name, args := range map[string]map[string]interface{}{
		"unknown engine": {"image_base64": testImageBase64(t, 8, 8), "engine": "paddle"},
		"one-sided size": {"image_base64": testImageBase64(t, 8, 8), "target_height": 10},
		"missing image":  {"references": []string{"NE555"}},
		"negative width": {"image_base64": testImageBase64(t, 8, 8), "target_width": -1, "target_height": 10},
	} {
		if err := toolError(s, "marking_analyze", args); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, nil)

	h := callTool(t, s, "marking_health", nil).(pipeline.HealthReport)
	if h.Status != "healthy" || h.Version != "1.2.3" {
		t.Errorf("got %+v", h)
	}
	if !reflect.DeepEqual(h.Engines, []string{"easyocr", "tesseract"}) {
		t.Errorf("Engines: got %v", h.Engines)
	}
}
