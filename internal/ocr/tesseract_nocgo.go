//go:build !cgo

package ocr

import (
	"context"
	"errors"
	"image"
)

// errNoCgo is returned by every tesseract engine in builds without cgo.
var errNoCgo = errors.New("tesseract engine requires a cgo build")

// TesseractEngine is a placeholder that fails to initialize; the Tesseract
// bindings need cgo.
type TesseractEngine struct {
	cfg TesseractConfig
}

// NewTesseractEngine returns an engine whose Initialize always fails.
func NewTesseractEngine(cfg TesseractConfig) *TesseractEngine {
	return &TesseractEngine{cfg: cfg}
}

func (e *TesseractEngine) Kind() EngineKind { return Tesseract }

func (e *TesseractEngine) Initialize(context.Context) error { return errNoCgo }

func (e *TesseractEngine) Extract(context.Context, image.Image, float64) ([]Detection, error) {
	return nil, errNoCgo
}
