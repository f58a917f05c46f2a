package imaging

import (
	"image"
	"math"
)

// QualityMetrics contains objective measurements of a processed raster.
type QualityMetrics struct {
	// Brightness is the mean intensity (0-255).
	Brightness float64 `json:"brightness"`

	// Contrast is the population standard deviation of the intensities.
	Contrast float64 `json:"contrast"`

	// Sharpness is the variance of the Laplacian; blurry images score low.
	Sharpness float64 `json:"sharpness"`

	// SNREstimate is Brightness/Contrast, or 0 when Contrast is 0.
	SNREstimate float64 `json:"snr_estimate"`

	// SurfaceChroma is the mean CIE LCh chroma of the source photograph
	// before grayscale conversion. It is 0 for gray input.
	SurfaceChroma float64 `json:"surface_chroma"`
}

// MeasureQuality computes brightness, contrast, sharpness and the SNR
// estimate of a gray raster. SurfaceChroma is left at zero; it describes the
// source photograph and is filled in by Process.
func MeasureQuality(img *image.Gray) QualityMetrics {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	n := float64(width * height)
	if n == 0 {
		return QualityMetrics{}
	}

	var sum float64
	for y := 0; y < height; y++ {
		row := img.Pix[img.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		for x := 0; x < width; x++ {
			sum += float64(row[x])
		}
	}
	mean := sum / n

	var sq float64
	for y := 0; y < height; y++ {
		row := img.Pix[img.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		for x := 0; x < width; x++ {
			d := float64(row[x]) - mean
			sq += d * d
		}
	}
	contrast := math.Sqrt(sq / n)

	metrics := QualityMetrics{
		Brightness: mean,
		Contrast:   contrast,
		Sharpness:  variance(laplacian(originGray(img))),
	}
	if contrast > 0 {
		metrics.SNREstimate = mean / contrast
	}
	return metrics
}

// variance returns the population variance of values.
func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return sq / float64(len(values))
}

// originGray returns img itself when it already starts at (0,0), otherwise a
// copy translated to the origin.
func originGray(img *image.Gray) *image.Gray {
	if img.Bounds().Min == (image.Point{}) {
		return img
	}
	g, _ := toGray(img)
	return g
}
