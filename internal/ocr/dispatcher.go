package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/ic-marking-mcp/internal/logging"
)

// Options configures a Dispatcher.
type Options struct {
	// Primary is used when a request does not name an engine.
	Primary EngineKind

	// Fallback is tried once when the requested engine fails. Empty
	// disables the fallback.
	Fallback EngineKind

	// Logger receives fallback and failure reports. Nil discards them.
	Logger *logrus.Entry
}

// Dispatcher routes extraction requests to initialized engines.
// It is immutable after Open and safe for concurrent use.
type Dispatcher struct {
	engines  map[EngineKind]Engine
	order    []EngineKind
	primary  EngineKind
	fallback EngineKind
	log      *logrus.Entry
}

// Open initializes every engine and returns a Dispatcher over them.
//
// Parameters:
//   - ctx: Bounds engine initialization.
//   - opts: Primary and fallback selection. Both must name supplied engines.
//   - engines: One engine per kind, in registration order.
//
// Returns:
//   - *Dispatcher: Ready for use.
//   - error: *EngineInitializationError if an engine fails to initialize, or
//     a plain error for an inconsistent engine set.
func Open(ctx context.Context, opts Options, engines ...Engine) (*Dispatcher, error) {
	d := &Dispatcher{
		engines:  make(map[EngineKind]Engine, len(engines)),
		primary:  opts.Primary,
		fallback: opts.Fallback,
		log:      opts.Logger,
	}
	if d.log == nil {
		d.log = logging.Discard()
	}

	for _, eng := range engines {
		if eng == nil {
			return nil, errors.New("nil OCR engine")
		}
		kind := eng.Kind()
		if _, dup := d.engines[kind]; dup {
			return nil, fmt.Errorf("OCR engine %s registered twice", kind)
		}
		d.engines[kind] = eng
		d.order = append(d.order, kind)
	}

	if _, ok := d.engines[d.primary]; !ok {
		return nil, fmt.Errorf("primary OCR engine %q: %w", d.primary, ErrEngineNotConfigured)
	}
	if d.fallback == d.primary {
		d.fallback = ""
	}
	if d.fallback != "" {
		if _, ok := d.engines[d.fallback]; !ok {
			return nil, fmt.Errorf("fallback OCR engine %q: %w", d.fallback, ErrEngineNotConfigured)
		}
	}

	for _, kind := range d.order {
		if err := d.engines[kind].Initialize(ctx); err != nil {
			return nil, &EngineInitializationError{Engine: kind, Err: err}
		}
		d.log.WithField("engine", kind).Info("OCR engine initialized")
	}
	return d, nil
}

// Primary returns the default engine.
func (d *Dispatcher) Primary() EngineKind { return d.primary }

// Fallback returns the fallback engine, or "" when there is none.
func (d *Dispatcher) Fallback() EngineKind { return d.fallback }

// Engines returns the configured engines in attempt order.
func (d *Dispatcher) Engines() []EngineKind { return d.attemptOrder() }

// ExtractText reads img with one engine, falling back once on failure.
//
// An empty engine selects the primary. The result is never nil; when both
// the engine and the fallback fail it carries EngineUsed "none" and a
// non-empty Error.
func (d *Dispatcher) ExtractText(ctx context.Context, img image.Image, engine EngineKind, minConfidence float64) *OCRResult {
	kind := engine
	if kind == "" {
		kind = d.primary
	}

	result, err := d.run(ctx, kind, img, minConfidence)
	if err == nil {
		return result
	}
	failures := []error{err}

	if d.fallback != "" && d.fallback != kind {
		d.log.WithFields(logrus.Fields{
			"engine":   kind,
			"fallback": d.fallback,
		}).WithError(err).Warn("OCR engine failed, trying fallback")

		result, err = d.run(ctx, d.fallback, img, minConfidence)
		if err == nil {
			return result
		}
		failures = append(failures, err)
	}

	failure := joinFailures(failures)
	d.log.WithError(failure).Error("all OCR engines failed")
	return FailedResult(failure)
}

// ExtractWithEnsemble reads img with every engine concurrently and keeps the
// most confident result.
//
// Engines that fail or recognize nothing are ignored. Ties go to the engine
// attempted first. The result's EngineUsed is "ensemble" and SelectedEngine
// names the winner. Alternatives lists the distinct texts of all engines that
// recognized something, in attempt order. The result is never nil.
func (d *Dispatcher) ExtractWithEnsemble(ctx context.Context, img image.Image, minConfidence float64) *OCRResult {
	order := d.attemptOrder()
	results := make([]*OCRResult, len(order))
	errs := make([]error, len(order))

	// Members never cancel each other; failures are collected per engine.
	var g errgroup.Group
	for i, kind := range order {
		i, kind := i, kind
		g.Go(func() error {
			results[i], errs[i] = d.run(ctx, kind, img, minConfidence)
			return nil
		})
	}
	_ = g.Wait()

	var best *OCRResult
	alternatives := make([]string, 0, len(order))
	seen := make(map[string]bool, len(order))
	var failures []error
	for i, kind := range order {
		if errs[i] != nil {
			d.log.WithField("engine", kind).WithError(errs[i]).Warn("ensemble member failed")
			failures = append(failures, errs[i])
			continue
		}
		r := results[i]
		if r.Text == "" {
			continue
		}
		if !seen[r.Text] {
			seen[r.Text] = true
			alternatives = append(alternatives, r.Text)
		}
		if best == nil || r.Confidence > best.Confidence {
			best = r
		}
	}

	if best == nil {
		failure := joinFailures(append(failures, ErrNoText))
		d.log.WithError(failure).Error("ensemble produced no text")
		return FailedResult(failure)
	}

	combined := *best
	combined.Alternatives = alternatives
	combined.SelectedEngine = combined.EngineUsed
	combined.EngineUsed = EngineEnsemble
	return &combined
}

// attemptOrder returns primary, fallback, then the remaining engines in
// registration order.
func (d *Dispatcher) attemptOrder() []EngineKind {
	order := make([]EngineKind, 0, len(d.order))
	order = append(order, d.primary)
	if d.fallback != "" {
		order = append(order, d.fallback)
	}
	for _, kind := range d.order {
		if kind != d.primary && kind != d.fallback {
			order = append(order, kind)
		}
	}
	return order
}

// run performs one extraction attempt. Every failure, including a panic in
// the engine, comes back as *EngineExtractionError.
func (d *Dispatcher) run(ctx context.Context, kind EngineKind, img image.Image, minConfidence float64) (result *OCRResult, err error) {
	eng, ok := d.engines[kind]
	if !ok {
		return nil, &EngineExtractionError{Engine: kind, Err: ErrEngineNotConfigured}
	}
	if img == nil || img.Bounds().Empty() {
		return nil, &EngineExtractionError{Engine: kind, Err: ErrNoImage}
	}
	if err := ctx.Err(); err != nil {
		return nil, &EngineExtractionError{Engine: kind, Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &EngineExtractionError{Engine: kind, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	detections, err := eng.Extract(ctx, img, minConfidence)
	if err != nil {
		return nil, &EngineExtractionError{Engine: kind, Err: err}
	}

	result = buildResult(kind, img.Bounds(), detections, minConfidence)
	d.log.WithFields(logrus.Fields{
		"engine":       kind,
		"observations": len(result.Observations),
		"confidence":   result.Confidence,
	}).Debug("OCR extraction finished")
	return result, nil
}

func joinFailures(errs []error) error {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return errors.New(strings.Join(msgs, "; "))
}
