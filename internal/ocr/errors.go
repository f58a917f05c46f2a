package ocr

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineNotConfigured is reported when a request names an engine the
	// Dispatcher was not opened with.
	ErrEngineNotConfigured = errors.New("engine not configured")

	// ErrNoImage is reported for a nil image or an image without pixels.
	ErrNoImage = errors.New("no image to read")

	// ErrNoText is reported by the ensemble when every engine ran but none
	// of them recognized any text.
	ErrNoText = errors.New("no engine recognized any text")
)

// EngineInitializationError reports an engine that could not be brought up.
// It is fatal to process startup.
type EngineInitializationError struct {
	Engine EngineKind
	Err    error
}

func (e *EngineInitializationError) Error() string {
	return fmt.Sprintf("failed to initialize %s engine: %v", e.Engine, e.Err)
}

func (e *EngineInitializationError) Unwrap() error {
	return e.Err
}

// EngineExtractionError reports a single failed extraction attempt.
type EngineExtractionError struct {
	Engine EngineKind
	Err    error
}

func (e *EngineExtractionError) Error() string {
	return fmt.Sprintf("%s extraction failed: %v", e.Engine, e.Err)
}

func (e *EngineExtractionError) Unwrap() error {
	return e.Err
}
