package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// EasyOCRConfig configures the EasyOCR sidecar client.
type EasyOCRConfig struct {
	// BaseURL is the sidecar address, e.g. http://127.0.0.1:8765.
	BaseURL string

	// Languages are EasyOCR language codes ("en", "de", ...).
	Languages []string

	// Timeout bounds each HTTP request. Zero means 30 seconds.
	Timeout time.Duration

	// Client overrides the HTTP client. Timeout is ignored when set.
	Client *http.Client
}

// Text-merging thresholds passed to readtext.
const (
	easyOCRWidthThreshold  = "0.7"
	easyOCRHeightThreshold = "0.7"
)

// maxEasyOCRResponse caps the response body read from the sidecar.
const maxEasyOCRResponse = 8 << 20

// EasyOCREngine reads text through an EasyOCR sidecar service.
//
// The sidecar exposes:
//
//	GET  /health    -> 200 when the model is loaded
//	POST /readtext  (PNG body) -> {"detections":[{"box":[[x,y],...],"text":"...","confidence":0.9}]}
type EasyOCREngine struct {
	base      *url.URL
	languages []string
	client    *http.Client
}

// NewEasyOCREngine returns an engine for the sidecar at cfg.BaseURL.
func NewEasyOCREngine(cfg EasyOCRConfig) (*EasyOCREngine, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid easyocr url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid easyocr url %q: scheme must be http or https", cfg.BaseURL)
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	langs := make([]string, 0, len(cfg.Languages))
	for _, l := range cfg.Languages {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			langs = append(langs, l)
		}
	}
	if len(langs) == 0 {
		langs = []string{"en"}
	}

	return &EasyOCREngine{base: base, languages: langs, client: client}, nil
}

func (e *EasyOCREngine) Kind() EngineKind { return EasyOCR }

// Initialize checks that the sidecar is up and has its model loaded.
func (e *EasyOCREngine) Initialize(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint("health", nil), nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("easyocr sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxEasyOCRResponse))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("easyocr sidecar not ready: %s", resp.Status)
	}
	return nil
}

type easyOCRResponse struct {
	Detections []struct {
		Box        [][]float64 `json:"box"`
		Text       string      `json:"text"`
		Confidence float64     `json:"confidence"`
	} `json:"detections"`
	Error string `json:"error"`
}

// Extract posts img to the sidecar and returns its detections. Polygons are
// passed through as reported.
func (e *EasyOCREngine) Extract(ctx context.Context, img image.Image, minConfidence float64) ([]Detection, error) {
	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("lang", strings.Join(e.languages, ","))
	query.Set("paragraph", "false")
	query.Set("width_ths", easyOCRWidthThreshold)
	query.Set("height_ths", easyOCRHeightThreshold)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint("readtext", query), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("easyocr request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEasyOCRResponse))
	if err != nil {
		return nil, fmt.Errorf("failed to read easyocr response: %w", err)
	}

	var parsed easyOCRResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("easyocr returned %s", resp.Status)
		}
		return nil, fmt.Errorf("failed to decode easyocr response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != "" {
			return nil, fmt.Errorf("easyocr returned %s: %s", resp.Status, parsed.Error)
		}
		return nil, fmt.Errorf("easyocr returned %s", resp.Status)
	}

	detections := make([]Detection, 0, len(parsed.Detections))
	for i, d := range parsed.Detections {
		vertices := make([]Vertex, 0, len(d.Box))
		for _, p := range d.Box {
			if len(p) != 2 {
				return nil, fmt.Errorf("easyocr detection %d: malformed box point %v", i, p)
			}
			vertices = append(vertices, Vertex{X: p[0], Y: p[1]})
		}
		if len(vertices) == 0 {
			return nil, errors.New("easyocr detection without box")
		}
		detections = append(detections, Detection{
			Text:       d.Text,
			Confidence: d.Confidence,
			Geometry:   PolygonGeometry(vertices...),
		})
	}
	return detections, nil
}

func (e *EasyOCREngine) endpoint(path string, query url.Values) string {
	u := *e.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
