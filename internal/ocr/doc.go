// Package ocr extracts text from chip photographs through interchangeable
// OCR backends.
//
// A Dispatcher owns a closed set of engines, selected by EngineKind. Engines
// are created and initialized once by Open and are read-only afterwards, so a
// single Dispatcher is shared by every request.
//
// # Engines
//
//   - tesseract: the Tesseract library through gosseract (cgo builds only).
//     Tuned for single-word IC markings: page segmentation mode 8 and an
//     upper-case alphanumeric whitelist by default.
//   - easyocr: an EasyOCR sidecar reached over HTTP.
//
// # Prerequisites
//
// The tesseract engine needs the Tesseract library and its language data:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// # Fallback
//
// ExtractText runs the requested engine (the primary when none is given). If
// it fails with an error or a panic, and a different fallback engine is
// configured, the fallback is tried once. An engine that runs but recognizes
// nothing has not failed.
//
// # Ensemble
//
// ExtractWithEnsemble runs every engine concurrently and returns the result
// with the highest confidence. Ties go to the engine attempted first: the
// primary, then the fallback, then the rest in registration order. The
// result's EngineUsed is "ensemble" and SelectedEngine names the winner.
//
// # Error Handling
//
// Neither ExtractText nor ExtractWithEnsemble returns an error. When no
// engine succeeds they return an OCRResult with EngineUsed "none" and the
// Error field set. Only Open fails hard, with *EngineInitializationError.
package ocr
