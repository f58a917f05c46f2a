package ocr

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"
)

// EngineKind names an OCR backend.
type EngineKind string

const (
	EasyOCR   EngineKind = "easyocr"
	Tesseract EngineKind = "tesseract"
)

// KnownEngines lists every EngineKind in a stable order.
var KnownEngines = []EngineKind{EasyOCR, Tesseract}

// ParseEngineKind maps a configuration value to an EngineKind. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseEngineKind(s string) (EngineKind, error) {
	kind := EngineKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range KnownEngines {
		if kind == known {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown OCR engine %q (supported: easyocr, tesseract)", s)
}

// Engine is the capability every OCR backend provides.
//
// Implementations must be safe for concurrent use once Initialize has
// returned: they are shared by all requests and may be run side by side by
// the ensemble. Per-call state, such as a native client, belongs inside
// Extract.
type Engine interface {
	// Kind identifies the backend.
	Kind() EngineKind

	// Initialize loads models or checks that the backend is reachable. It is
	// called exactly once, before any Extract.
	Initialize(ctx context.Context) error

	// Extract recognizes text in img. minConfidence is a hint; backends may
	// pre-filter with it, but the Dispatcher applies the threshold itself.
	// Coordinates are relative to the top-left corner of img.
	Extract(ctx context.Context, img image.Image, minConfidence float64) ([]Detection, error)
}

// Vertex is a polygon corner in pixel coordinates.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Geometry locates a detection. Backends fill in either Polygon or Box;
// Polygon wins when both are set.
type Geometry struct {
	Polygon []Vertex
	Box     image.Rectangle
}

// PolygonGeometry returns a Geometry for a (possibly rotated) quadrilateral
// or any other polygon.
func PolygonGeometry(vertices ...Vertex) Geometry {
	return Geometry{Polygon: vertices}
}

// BoxGeometry returns a Geometry for an axis-aligned rectangle.
func BoxGeometry(r image.Rectangle) Geometry {
	return Geometry{Box: r}
}

// rect converts the geometry to an axis-aligned rectangle. Polygons use the
// min/max of their vertices; fractional coordinates are truncated the same
// way for the origin and the extent.
func (g Geometry) rect() image.Rectangle {
	if len(g.Polygon) == 0 {
		return g.Box.Canon()
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, v := range g.Polygon {
		minX = math.Min(minX, v.X)
		minY = math.Min(minY, v.Y)
		maxX = math.Max(maxX, v.X)
		maxY = math.Max(maxY, v.Y)
	}
	x, y := int(minX), int(minY)
	return image.Rect(x, y, x+int(maxX-minX), y+int(maxY-minY))
}

// Detection is one text span as reported by a backend, before filtering.
type Detection struct {
	Text       string
	Confidence float64
	Geometry   Geometry
}
