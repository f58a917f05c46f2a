package ocr

import (
	"image"
	"math"
	"strings"
)

const (
	// EngineNone is the OCRResult.EngineUsed of a result no engine produced.
	EngineNone = "none"

	// EngineEnsemble is the OCRResult.EngineUsed of a combined result.
	EngineEnsemble = "ensemble"
)

// Observation is one recognized text span that passed the confidence
// threshold. The box always lies inside the image that was read.
type Observation struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// OCRResult is the outcome of an extraction.
type OCRResult struct {
	// Text joins the surviving observations with single spaces, in
	// detection order.
	Text string `json:"text"`

	// Confidence is the mean observation confidence, 0 when none survived.
	Confidence float64 `json:"confidence"`

	Observations []Observation `json:"observations"`

	// Alternatives holds the individual observation texts when more than
	// one survived. For ensemble results it holds the distinct full texts
	// of every engine that recognized something.
	Alternatives []string `json:"alternatives"`

	// EngineUsed is the engine that produced the result, "ensemble" for
	// combined results, or "none" when every engine failed.
	EngineUsed string `json:"engine_used"`

	// SelectedEngine names the engine whose reading won an ensemble.
	SelectedEngine string `json:"selected_engine,omitempty"`

	// Error describes why no engine succeeded. Text is empty whenever it is
	// set.
	Error string `json:"error,omitempty"`
}

// FailedResult is the well-formed result returned when no engine succeeded.
// Callers outside the dispatcher use it to report failures that happen
// before an engine runs.
func FailedResult(err error) *OCRResult {
	return &OCRResult{
		Observations: []Observation{},
		Alternatives: []string{},
		EngineUsed:   EngineNone,
		Error:        err.Error(),
	}
}

// buildResult filters raw detections and aggregates the survivors.
func buildResult(kind EngineKind, bounds image.Rectangle, detections []Detection, minConfidence float64) *OCRResult {
	result := &OCRResult{
		Observations: make([]Observation, 0, len(detections)),
		Alternatives: []string{},
		EngineUsed:   string(kind),
	}

	frame := image.Rect(0, 0, bounds.Dx(), bounds.Dy())
	texts := make([]string, 0, len(detections))
	var sum float64
	for _, d := range detections {
		text := strings.TrimSpace(d.Text)
		conf := clampConfidence(d.Confidence)
		if text == "" || conf < minConfidence {
			continue
		}

		box := clampBox(d.Geometry.rect(), frame)
		result.Observations = append(result.Observations, Observation{
			Text:       text,
			Confidence: conf,
			X:          box.Min.X,
			Y:          box.Min.Y,
			Width:      box.Dx(),
			Height:     box.Dy(),
		})
		texts = append(texts, text)
		sum += conf
	}

	if len(texts) == 0 {
		return result
	}
	result.Text = strings.Join(texts, " ")
	result.Confidence = clampConfidence(sum / float64(len(texts)))
	if len(texts) > 1 {
		result.Alternatives = texts
	}
	return result
}

// clampBox moves r inside frame. A box lying entirely outside collapses onto
// the nearest edge with zero width or height.
func clampBox(r, frame image.Rectangle) image.Rectangle {
	x0 := min(max(r.Min.X, frame.Min.X), frame.Max.X)
	y0 := min(max(r.Min.Y, frame.Min.Y), frame.Max.Y)
	x1 := min(max(r.Max.X, x0), frame.Max.X)
	y1 := min(max(r.Max.Y, y0), frame.Max.Y)
	return image.Rectangle{Min: image.Pt(x0, y0), Max: image.Pt(x1, y1)}
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
