// Package pipeline ties preprocessing, OCR and similarity matching together
// behind one immutable Service.
//
// Preprocessing and OCR run on a bounded worker pool; similarity scoring is
// cheap and runs on the caller's goroutine. A Service is built once at
// startup and shared by every request.
package pipeline

import (
	"context"
	"errors"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/ic-marking-mcp/internal/imaging"
	"github.com/ironsheep/ic-marking-mcp/internal/logging"
	"github.com/ironsheep/ic-marking-mcp/internal/ocr"
	"github.com/ironsheep/ic-marking-mcp/internal/similarity"
	"github.com/ironsheep/ic-marking-mcp/internal/workerpool"
)

// DefaultMinConfidence is used when Config.MinConfidence is not set.
const DefaultMinConfidence = 0.1

// Config holds the collaborators and defaults of a Service.
type Config struct {
	Dispatcher *ocr.Dispatcher
	Pool       *workerpool.Pool

	// Matcher defaults to a matcher logging through Logger.
	Matcher *similarity.Matcher

	// Logger defaults to a discarding logger.
	Logger *logrus.Entry

	// MinConfidence is the default for Analyze. Zero means
	// DefaultMinConfidence.
	MinConfidence float64

	// TargetSize is the default bounding box for Analyze. Zero means the
	// imaging default.
	TargetSize imaging.Size

	// Version is reported by Health.
	Version string
}

// Service runs marking verification requests. It is safe for concurrent use.
type Service struct {
	dispatcher    *ocr.Dispatcher
	pool          *workerpool.Pool
	matcher       *similarity.Matcher
	log           *logrus.Entry
	minConfidence float64
	targetSize    imaging.Size
	version       string
}

// New validates cfg and returns a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("pipeline: OCR dispatcher is required")
	}
	if cfg.Pool == nil {
		return nil, errors.New("pipeline: worker pool is required")
	}

	s := &Service{
		dispatcher:    cfg.Dispatcher,
		pool:          cfg.Pool,
		matcher:       cfg.Matcher,
		log:           cfg.Logger,
		minConfidence: cfg.MinConfidence,
		targetSize:    cfg.TargetSize,
		version:       cfg.Version,
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	if s.matcher == nil {
		s.matcher = similarity.NewMatcher(s.log)
	}
	if s.minConfidence == 0 {
		s.minConfidence = DefaultMinConfidence
	}
	if s.targetSize.Width <= 0 || s.targetSize.Height <= 0 {
		s.targetSize = *imaging.DefaultProcessConfig().TargetSize
	}
	return s, nil
}

// MinConfidence returns the default confidence threshold.
func (s *Service) MinConfidence() float64 { return s.minConfidence }

// ProcessImage preprocesses img on the worker pool.
func (s *Service) ProcessImage(ctx context.Context, img image.Image, cfg imaging.ProcessConfig) (*imaging.ProcessingResult, error) {
	return workerpool.Run(ctx, s.pool, func() (*imaging.ProcessingResult, error) {
		return imaging.Process(img, cfg)
	})
}

// ExtractText reads img with one engine on the worker pool. The result is
// never nil: when no worker could be obtained it is a failed result.
func (s *Service) ExtractText(ctx context.Context, img image.Image, engine ocr.EngineKind, minConfidence float64) *ocr.OCRResult {
	result, err := workerpool.Run(ctx, s.pool, func() (*ocr.OCRResult, error) {
		return s.dispatcher.ExtractText(ctx, img, engine, minConfidence), nil
	})
	if err != nil {
		s.log.WithError(err).Warn("OCR request not run")
		return ocr.FailedResult(err)
	}
	return result
}

// ExtractWithEnsemble runs every engine on img inside one pooled task.
func (s *Service) ExtractWithEnsemble(ctx context.Context, img image.Image, minConfidence float64) *ocr.OCRResult {
	result, err := workerpool.Run(ctx, s.pool, func() (*ocr.OCRResult, error) {
		return s.dispatcher.ExtractWithEnsemble(ctx, img, minConfidence), nil
	})
	if err != nil {
		s.log.WithError(err).Warn("ensemble request not run")
		return ocr.FailedResult(err)
	}
	return result
}

// CalculateSimilarity scores a against b.
func (s *Service) CalculateSimilarity(a, b, method string) float64 {
	return s.matcher.Calculate(a, b, method)
}

// FindBestMatches ranks candidates against query.
func (s *Service) FindBestMatches(query string, candidates []string, method string, limit int) []similarity.Match {
	return s.matcher.FindBestMatches(query, candidates, method, limit)
}

// HealthReport describes the running service.
type HealthReport struct {
	Status         string            `json:"status"`
	Version        string            `json:"version"`
	Components     map[string]string `json:"components"`
	PrimaryEngine  string            `json:"primary_engine"`
	FallbackEngine string            `json:"fallback_engine,omitempty"`
	Engines        []string          `json:"engines"`
	WorkerPoolSize int               `json:"worker_pool_size"`
}

// Health reports component status. Engines are initialized before a Service
// exists, so every component of a constructed Service is ready.
func (s *Service) Health() HealthReport {
	kinds := s.dispatcher.Engines()
	engines := make([]string, len(kinds))
	for i, k := range kinds {
		engines[i] = string(k)
	}
	return HealthReport{
		Status:  "healthy",
		Version: s.version,
		Components: map[string]string{
			"preprocessor": "ready",
			"ocr":          "ready",
			"similarity":   "ready",
			"worker_pool":  "ready",
		},
		PrimaryEngine:  string(s.dispatcher.Primary()),
		FallbackEngine: string(s.dispatcher.Fallback()),
		Engines:        engines,
		WorkerPoolSize: s.pool.Size(),
	}
}
