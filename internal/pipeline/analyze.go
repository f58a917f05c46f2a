package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/ic-marking-mcp/internal/imaging"
	"github.com/ironsheep/ic-marking-mcp/internal/ocr"
	"github.com/ironsheep/ic-marking-mcp/internal/similarity"
)

// DefaultMatchLimit caps the reference matches of an analysis when
// AnalyzeOptions.Limit is not positive.
const DefaultMatchLimit = 5

// AnalyzeOptions controls one Analyze call. The zero value uses the
// service defaults and the primary engine.
type AnalyzeOptions struct {
	// InspectionID identifies the analysis. A random UUID is used when empty.
	InspectionID string

	// Engine selects the OCR engine; empty means the primary. Ignored when
	// Ensemble is set.
	Engine   ocr.EngineKind
	Ensemble bool

	// MinConfidence overrides the service default when non-nil.
	MinConfidence *float64

	// TargetSize overrides the service default when non-nil.
	TargetSize *imaging.Size

	// DisableEnhance skips contrast enhancement.
	DisableEnhance bool

	// References are the expected part numbers. When empty no matching is
	// done.
	References []string
	Method     string
	Limit      int
}

// Timings are durations in milliseconds.
type Timings struct {
	Preprocess float64 `json:"preprocess"`
	OCR        float64 `json:"ocr"`
	Match      float64 `json:"match"`
	Total      float64 `json:"total"`
}

// Analysis is the outcome of Analyze.
type Analysis struct {
	InspectionID string                 `json:"inspection_id"`
	Timestamp    time.Time              `json:"timestamp"`
	Steps        []string               `json:"steps"`
	Metrics      imaging.QualityMetrics `json:"metrics"`
	OCR          *ocr.OCRResult         `json:"ocr"`
	Matches      []similarity.Match     `json:"matches"`

	// BestMatch is the top match, if any.
	BestMatch *similarity.Match `json:"best_match,omitempty"`

	Timings Timings `json:"timings_ms"`
}

// Analyze preprocesses img, reads its marking and ranks the text against
// the reference part numbers.
//
// Only invalid input or a cancelled context produce an error. An OCR
// failure is reported in Analysis.OCR, and matching still runs against the
// empty text so every reference comes back with score 0.
func (s *Service) Analyze(ctx context.Context, img image.Image, opts AnalyzeOptions) (*Analysis, error) {
	start := time.Now()

	id := opts.InspectionID
	if id == "" {
		id = uuid.NewString()
	}
	log := s.log.WithField("inspection_id", id)

	minConfidence := s.minConfidence
	if opts.MinConfidence != nil {
		minConfidence = *opts.MinConfidence
	}
	target := s.targetSize
	if opts.TargetSize != nil {
		target = *opts.TargetSize
	}

	processed, err := s.ProcessImage(ctx, img, imaging.ProcessConfig{
		AutoEnhance: !opts.DisableEnhance,
		TargetSize:  &target,
	})
	if err != nil {
		return nil, err
	}
	preprocessDone := time.Now()

	var result *ocr.OCRResult
	if opts.Ensemble {
		result = s.ExtractWithEnsemble(ctx, processed.Image, minConfidence)
	} else {
		result = s.ExtractText(ctx, processed.Image, opts.Engine, minConfidence)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ocrDone := time.Now()

	matches := []similarity.Match{}
	if len(opts.References) > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = DefaultMatchLimit
		}
		matches = s.FindBestMatches(result.Text, opts.References, opts.Method, limit)
	}
	end := time.Now()

	a := &Analysis{
		InspectionID: id,
		Timestamp:    start.UTC(),
		Steps:        processed.Steps,
		Metrics:      processed.Metrics,
		OCR:          result,
		Matches:      matches,
		Timings: Timings{
			Preprocess: millis(preprocessDone.Sub(start)),
			OCR:        millis(ocrDone.Sub(preprocessDone)),
			Match:      millis(end.Sub(ocrDone)),
			Total:      millis(end.Sub(start)),
		},
	}
	if len(matches) > 0 {
		best := matches[0]
		a.BestMatch = &best
	}

	fields := logrus.Fields{
		"engine":     result.EngineUsed,
		"confidence": result.Confidence,
		"total_ms":   a.Timings.Total,
	}
	if result.SelectedEngine != "" {
		fields["selected_engine"] = result.SelectedEngine
	}
	if a.BestMatch != nil {
		fields["best_match"] = a.BestMatch.Text
		fields["best_score"] = a.BestMatch.Score
	}
	log.WithFields(fields).Info("analysis complete")
	return a, nil
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
