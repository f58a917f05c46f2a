package imaging

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// maxChromaSamples bounds the work done by SurfaceChroma on large photographs.
const maxChromaSamples = 256 * 256

// hasColorChannels reports whether img stores more than one channel.
//
// Only *image.Gray and *image.Gray16 count as single-channel. Every other
// concrete type (RGBA, NRGBA, YCbCr, Paletted, ...) is treated as color even
// when all of its pixels happen to be neutral.
func hasColorChannels(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return false
	}
	return true
}

// toGray returns an 8-bit single-channel copy of img with its origin at (0,0).
//
// The second result is true when a color-to-luminance conversion was needed.
// Gray16 input is narrowed to 8 bits, which is not reported as a conversion.
func toGray(img image.Image) (*image.Gray, bool) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	dst := image.NewGray(image.Rect(0, 0, width, height))

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < height; y++ {
			off := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+width], src.Pix[off:off+width])
		}
		return dst, false
	case *image.Gray16:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				v := src.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y
				dst.Pix[y*dst.Stride+x] = uint8(v >> 8)
			}
		}
		return dst, false
	}

	// imaging.Grayscale uses the BT.601 weights and returns an NRGBA image
	// with identical R, G and B channels.
	return grayFromNRGBA(imaging.Grayscale(img)), true
}

// grayFromNRGBA copies the red channel of an NRGBA raster into a Gray raster.
// It is only meaningful for images whose channels are already equal.
func grayFromNRGBA(src *image.NRGBA) *image.Gray {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	dst := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		for x := 0; x < width; x++ {
			dst.Pix[y*dst.Stride+x] = src.Pix[row+x*4]
		}
	}
	return dst
}

// SurfaceChroma estimates how colorful a chip photograph is.
//
// The result is the mean chroma (the C of CIE LCh, roughly 0 to 1.3) over a
// grid of at most 256x256 sample points. Gray rasters return 0. Fully
// transparent pixels are ignored.
//
// Plain black or gray packages score close to 0; colored packages, colored
// lighting and strong chromatic glare push the value up, which often
// correlates with poor OCR results after grayscale conversion.
func SurfaceChroma(img image.Image) float64 {
	if img == nil || !hasColorChannels(img) {
		return 0
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return 0
	}

	step := 1
	if total := width * height; total > maxChromaSamples {
		step = int(math.Ceil(math.Sqrt(float64(total) / float64(maxChromaSamples))))
	}

	var sum float64
	samples := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				continue
			}
			_, chroma, _ := c.Hcl()
			sum += chroma
			samples++
		}
	}
	if samples == 0 {
		return 0
	}
	return sum / float64(samples)
}
