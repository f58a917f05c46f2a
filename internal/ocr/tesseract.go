package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
)

// Defaults for reading IC markings with Tesseract.
const (
	// DefaultTesseractPSM treats the image as a single word.
	DefaultTesseractPSM = 8

	// DefaultTesseractWhitelist covers the characters found in part numbers
	// and date codes.
	DefaultTesseractWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-+./"
)

// TesseractConfig configures the tesseract engine.
type TesseractConfig struct {
	// Languages are short (en) or Tesseract (eng) language codes.
	Languages []string

	// PageSegMode is a Tesseract page segmentation mode (0-13).
	PageSegMode int

	// Whitelist restricts the recognized characters. Empty allows all.
	Whitelist string

	// TessdataPrefix overrides the directory holding *.traineddata files.
	TessdataPrefix string
}

// DefaultTesseractConfig returns the configuration tuned for IC markings.
func DefaultTesseractConfig() TesseractConfig {
	return TesseractConfig{
		Languages:   []string{"en"},
		PageSegMode: DefaultTesseractPSM,
		Whitelist:   DefaultTesseractWhitelist,
	}
}

// tesseractLanguages maps the two-letter codes used in configuration to
// Tesseract's three-letter codes.
var tesseractLanguages = map[string]string{
	"en": "eng",
	"de": "deu",
	"fr": "fra",
	"es": "spa",
	"it": "ita",
	"ja": "jpn",
	"ko": "kor",
	"zh": "chi_sim",
}

// tesseractLanguageCodes converts configured languages to Tesseract codes,
// dropping duplicates. Unknown codes pass through unchanged so that any
// installed traineddata can be used. An empty list yields ["eng"].
func tesseractLanguageCodes(langs []string) []string {
	codes := make([]string, 0, len(langs))
	seen := make(map[string]bool, len(langs))
	for _, lang := range langs {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang == "" {
			continue
		}
		if mapped, ok := tesseractLanguages[lang]; ok {
			lang = mapped
		}
		if !seen[lang] {
			seen[lang] = true
			codes = append(codes, lang)
		}
	}
	if len(codes) == 0 {
		return []string{"eng"}
	}
	return codes
}

func (c TesseractConfig) validate() error {
	if c.PageSegMode < 0 || c.PageSegMode > 13 {
		return fmt.Errorf("page segmentation mode %d out of range 0-13", c.PageSegMode)
	}
	return nil
}

// encodePNG serializes img for backends that take encoded bytes.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
