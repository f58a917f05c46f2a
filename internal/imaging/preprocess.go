package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Step identifiers reported in ProcessingResult.Steps.
const (
	StepGrayscale = "convert_to_grayscale"
	StepBilateral = "bilateral_filter"
	StepCLAHE     = "clahe_enhancement"
	StepSharpen   = "sharpening"
)

// Fixed filter parameters of the pipeline.
const (
	bilateralDiameter   = 9
	bilateralSigmaColor = 75.0
	bilateralSigmaSpace = 75.0
	claheClipLimit      = 2.0
	claheTiles          = 8
)

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ProcessConfig controls the optional parts of Process.
type ProcessConfig struct {
	// AutoEnhance enables the CLAHE contrast enhancement step.
	AutoEnhance bool

	// TargetSize, when set, is the bounding box the image is shrunk to fit.
	// Images that already fit are left at their size.
	TargetSize *Size

	// ReturnIntermediate keeps a snapshot of the raster after every step.
	ReturnIntermediate bool
}

// DefaultProcessConfig returns the configuration used for marking analysis:
// auto enhancement on and a 1024x768 bounding box.
func DefaultProcessConfig() ProcessConfig {
	return ProcessConfig{
		AutoEnhance: true,
		TargetSize:  &Size{Width: 1024, Height: 768},
	}
}

// Stage is a snapshot of the raster right after one pipeline step.
type Stage struct {
	Step  string      `json:"step"`
	Image *image.Gray `json:"-"`
}

// ProcessingResult is the outcome of Process.
type ProcessingResult struct {
	// Image is the OCR-ready 8-bit gray raster.
	Image *image.Gray `json:"-"`

	// Steps lists the operations that were applied, in order.
	Steps []string `json:"steps"`

	// Metrics describes the final raster.
	Metrics QualityMetrics `json:"metrics"`

	// Intermediates holds one snapshot per step when requested.
	Intermediates []Stage `json:"-"`
}

// Process normalizes a photograph into an OCR-ready gray raster.
//
// Parameters:
//   - img: Source image. It is never modified.
//   - cfg: Optional steps; see ProcessConfig.
//
// Returns:
//   - *ProcessingResult: The processed raster, the steps applied and the
//     quality metrics of the final raster.
//   - error: *InvalidInputError if img is nil or has no pixels.
//
// See the package documentation for the exact order of operations.
func Process(img image.Image, cfg ProcessConfig) (*ProcessingResult, error) {
	if err := validate(img); err != nil {
		return nil, err
	}

	result := &ProcessingResult{Steps: make([]string, 0, 5)}
	record := func(step string, raster *image.Gray) {
		result.Steps = append(result.Steps, step)
		if cfg.ReturnIntermediate {
			result.Intermediates = append(result.Intermediates, Stage{Step: step, Image: raster})
		}
	}

	// toGray always copies, so nothing below can touch the caller's pixels.
	processed, converted := toGray(img)
	if converted {
		record(StepGrayscale, processed)
	}

	if cfg.TargetSize != nil {
		if resized, ok := shrinkToFit(processed, *cfg.TargetSize); ok {
			processed = resized
			record(fmt.Sprintf("resize_to_%dx%d", processed.Bounds().Dx(), processed.Bounds().Dy()), processed)
		}
	}

	processed = bilateralFilter(processed, bilateralDiameter, bilateralSigmaColor, bilateralSigmaSpace)
	record(StepBilateral, processed)

	if cfg.AutoEnhance {
		processed = clahe(processed, claheClipLimit, claheTiles, claheTiles)
		record(StepCLAHE, processed)
	}

	processed = sharpen(processed)
	record(StepSharpen, processed)

	result.Image = processed
	result.Metrics = MeasureQuality(processed)
	if converted {
		result.Metrics.SurfaceChroma = SurfaceChroma(img)
	}
	return result, nil
}

// shrinkToFit scales src down so that it fits inside target, keeping the
// aspect ratio. It reports false, and does nothing, when src already fits or
// the target is not a positive size.
func shrinkToFit(src *image.Gray, target Size) (*image.Gray, bool) {
	if target.Width <= 0 || target.Height <= 0 {
		return nil, false
	}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	scale := min(float64(target.Width)/float64(w), float64(target.Height)/float64(h))
	if scale >= 1.0 {
		return nil, false
	}

	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	// Box averages every source pixel that falls into a destination pixel,
	// which is the appropriate filter for pure downscaling.
	return grayFromNRGBA(imaging.Resize(src, newW, newH, imaging.Box)), true
}
