package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"os"
	"strings"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// InvalidInputError reports an image that cannot be processed at all: a nil
// image, an image without pixels, or data that does not decode.
//
// It is the only hard failure of the preprocessing pipeline. Requests that hit
// it should not be retried with the same input.
type InvalidInputError struct {
	// Reason is a short description of what was wrong with the input.
	Reason string

	// Err is the underlying decoder or I/O error, if any.
	Err error
}

func (e *InvalidInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid input image: %s: %v", e.Reason, e.Err)
	}
	return "invalid input image: " + e.Reason
}

func (e *InvalidInputError) Unwrap() error {
	return e.Err
}

// ImageInfo describes a decoded raster.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the name reported by the decoder ("png", "jpeg", ...).
	Format string `json:"format"`

	// HasColor is false only for single-channel (gray) rasters.
	HasColor bool `json:"has_color"`
}

// DecodeImage decodes an image from r.
//
// Supported formats are PNG, JPEG, GIF, BMP, TIFF and WebP. Anything else,
// including truncated data and zero-sized images, yields *InvalidInputError.
func DecodeImage(r io.Reader) (image.Image, *ImageInfo, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, nil, &InvalidInputError{Reason: "unable to decode image", Err: err}
	}
	if err := validate(img); err != nil {
		return nil, nil, err
	}

	bounds := img.Bounds()
	return img, &ImageInfo{
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Format:   format,
		HasColor: hasColorChannels(img),
	}, nil
}

// LoadImage reads and decodes the image file at path.
//
// The file is closed before LoadImage returns; nothing is cached, so the
// decoded raster belongs to the caller alone.
func LoadImage(path string) (image.Image, *ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &InvalidInputError{Reason: "unable to open image", Err: err}
	}
	defer f.Close()

	return DecodeImage(f)
}

// DecodeBase64Image decodes a base64 payload holding an encoded image.
//
// A data URL prefix such as "data:image/png;base64," is accepted and ignored.
func DecodeBase64Image(data string) (image.Image, *ImageInfo, error) {
	if i := strings.Index(data, ";base64,"); i >= 0 && strings.HasPrefix(data, "data:") {
		data = data[i+len(";base64,"):]
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return nil, nil, &InvalidInputError{Reason: "invalid base64 image data", Err: err}
	}
	if len(raw) == 0 {
		return nil, nil, &InvalidInputError{Reason: "empty image data"}
	}

	return DecodeImage(bytes.NewReader(raw))
}

// validate rejects images that carry no pixels.
func validate(img image.Image) error {
	if img == nil {
		return &InvalidInputError{Reason: "image is nil"}
	}
	if img.Bounds().Empty() {
		return &InvalidInputError{Reason: "image has no pixels"}
	}
	return nil
}
