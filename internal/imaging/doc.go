// Package imaging turns photographs of chip surfaces into OCR-ready rasters.
//
// The central entry point is Process, which runs a fixed pipeline over a copy
// of the caller's image and reports exactly which operations were applied,
// together with objective quality metrics for the result.
//
// # Pipeline
//
// The operations always run in this order; optional ones are skipped (and not
// reported) when they do not apply:
//
//  1. convert_to_grayscale: color input is reduced to 8-bit luminance using
//     ITU-R BT.601 weights (0.299*R + 0.587*G + 0.114*B).
//  2. resize_to_WxH: only when a target size is given and the image is larger
//     than it. The image is never upscaled; the aspect ratio is preserved.
//  3. bilateral_filter: edge-preserving noise reduction (diameter 9,
//     sigmaColor 75, sigmaSpace 75).
//  4. clahe_enhancement: contrast-limited adaptive histogram equalization
//     (clip limit 2.0, 8x8 tiles), only when AutoEnhance is set.
//  5. sharpening: 3x3 kernel [[-1,-1,-1],[-1,9,-1],[-1,-1,-1]].
//
// # Coordinate System
//
// Every raster produced by this package has its origin at (0,0), regardless
// of the bounds of the input image. X increases rightward, Y downward.
//
// # Thread Safety
//
// Process and the metric functions are stateless and never modify their
// input, so they may be called concurrently on the same source image.
//
// # Error Handling
//
// A nil image, an image with empty bounds, or bytes that cannot be decoded
// produce an *InvalidInputError. Use errors.As to detect it.
package imaging
