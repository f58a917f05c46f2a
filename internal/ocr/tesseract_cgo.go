//go:build cgo

package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine reads text with the Tesseract library.
//
// gosseract clients are not safe for concurrent use, so every call creates
// and closes its own client; the engine value itself is never modified.
type TesseractEngine struct {
	cfg           TesseractConfig
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine returns a tesseract engine for cfg.
func NewTesseractEngine(cfg TesseractConfig) *TesseractEngine {
	return &TesseractEngine{
		cfg:           cfg,
		languages:     tesseractLanguageCodes(cfg.Languages),
		clientFactory: gosseract.NewClient,
	}
}

func (e *TesseractEngine) Kind() EngineKind { return Tesseract }

// Initialize checks the configuration and runs Tesseract once on a blank
// image, which loads the language data.
func (e *TesseractEngine) Initialize(ctx context.Context) error {
	if err := e.cfg.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := e.newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if client.Version() == "" {
		return errors.New("tesseract library not available")
	}

	blank := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range blank.Pix {
		blank.Pix[i] = 0xFF
	}
	data, err := encodePNG(blank)
	if err != nil {
		return err
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return fmt.Errorf("set image: %w", err)
	}
	if _, err := client.Text(); err != nil {
		return fmt.Errorf("tesseract languages %v: %w", e.languages, err)
	}
	return nil
}

// Extract returns one detection per recognized word. Words below
// minConfidence are dropped here already.
func (e *TesseractEngine) Extract(ctx context.Context, img image.Image, minConfidence float64) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	client, err := e.newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("recognize words: %w", err)
	}

	return wordDetections(boxes, minConfidence), nil
}

// wordDetections converts Tesseract's percent confidences to [0,1] and keeps
// the non-empty words at or above minConfidence.
func wordDetections(boxes []gosseract.BoundingBox, minConfidence float64) []Detection {
	detections := make([]Detection, 0, len(boxes))
	for _, b := range boxes {
		conf := b.Confidence / 100.0
		if b.Word == "" || conf < minConfidence {
			continue
		}
		detections = append(detections, Detection{
			Text:       b.Word,
			Confidence: conf,
			Geometry:   BoxGeometry(b.Box),
		})
	}
	return detections
}

// newClient creates a client with the engine's languages and variables set.
// The caller closes it.
func (e *TesseractEngine) newClient() (*gosseract.Client, error) {
	client := e.clientFactory()

	if e.cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(e.cfg.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(e.languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(e.cfg.PageSegMode)); err != nil {
		client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	if e.cfg.Whitelist != "" {
		if err := client.SetVariable(gosseract.SettableVariable("tessedit_char_whitelist"), e.cfg.Whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}
	return client, nil
}
