package imaging

import "image"

// laplacian computes the 4-neighbour Laplacian of a gray raster.
//
// Kernel:
//
//	 0  1  0
//	 1 -4  1
//	 0  1  0
//
// The result is signed and unscaled. Border pixels read their neighbours
// through reflect101, so a uniform image yields exactly zero everywhere.
func laplacian(src *image.Gray) []float64 {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	out := make([]float64, width*height)

	at := func(x, y int) float64 {
		return float64(src.Pix[reflect101(y, height)*src.Stride+reflect101(x, width)])
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out[y*width+x] = at(x, y-1) + at(x-1, y) + at(x+1, y) + at(x, y+1) - 4*at(x, y)
		}
	}
	return out
}

// reflect101 maps an out-of-range index back into [0, n) by mirroring around
// the edge pixel without repeating it (…2 1 | 0 1 2 … n-2 n-1 | n-2 …).
// Offsets of n or more keep bouncing between the two edges.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

// padReflect101 returns src grown by pad pixels on every side, filled by
// reflect101.
func padReflect101(src *image.Gray, pad int) *image.Gray {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	dst := image.NewGray(image.Rect(0, 0, width+2*pad, height+2*pad))
	for y := 0; y < height+2*pad; y++ {
		row := reflect101(y-pad, height) * src.Stride
		for x := 0; x < width+2*pad; x++ {
			dst.Pix[y*dst.Stride+x] = src.Pix[row+reflect101(x-pad, width)]
		}
	}
	return dst
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in neighbourhood filters.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
