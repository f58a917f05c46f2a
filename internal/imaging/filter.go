package imaging

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/convolution"
)

// bilateralFilter smooths a gray raster while preserving edges.
//
// Each output pixel is a weighted mean over a circular neighbourhood of the
// given diameter. The weight of a neighbour is the product of a spatial
// Gaussian (sigmaSpace, in pixels) and a range Gaussian on the intensity
// difference to the centre pixel (sigmaColor, in gray levels), so pixels on
// the far side of a strong edge contribute almost nothing.
//
// Borders are mirrored with reflect101.
func bilateralFilter(src *image.Gray, diameter int, sigmaColor, sigmaSpace float64) *image.Gray {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	dst := image.NewGray(image.Rect(0, 0, width, height))
	radius := diameter / 2

	var rangeWeight [256]float64
	colorCoeff := -0.5 / (sigmaColor * sigmaColor)
	for i := range rangeWeight {
		rangeWeight[i] = math.Exp(float64(i*i) * colorCoeff)
	}

	type tap struct {
		dx, dy int
		weight float64
	}
	spaceCoeff := -0.5 / (sigmaSpace * sigmaSpace)
	taps := make([]tap, 0, diameter*diameter)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d2 := dx*dx + dy*dy
			if d2 > radius*radius {
				continue
			}
			taps = append(taps, tap{dx: dx, dy: dy, weight: math.Exp(float64(d2) * spaceCoeff)})
		}
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			center := int(src.Pix[y*src.Stride+x])
			var sum, norm float64
			for _, t := range taps {
				px := reflect101(x+t.dx, width)
				py := reflect101(y+t.dy, height)
				v := int(src.Pix[py*src.Stride+px])
				diff := v - center
				if diff < 0 {
					diff = -diff
				}
				w := t.weight * rangeWeight[diff]
				sum += w * float64(v)
				norm += w
			}
			dst.Pix[y*dst.Stride+x] = uint8(clamp(int(math.Round(sum/norm)), 0, 255))
		}
	}
	return dst
}

// clahe applies contrast-limited adaptive histogram equalization.
//
// The image is split into a tilesX x tilesY grid. Each tile gets its own
// equalization table built from a histogram whose bins are clipped at
// clipLimit*tileArea/256 counts (never below 1); the clipped excess is spread
// evenly over all bins. Output pixels blend the tables of the four nearest
// tile centres bilinearly, which avoids visible tile seams.
func clahe(src *image.Gray, clipLimit float64, tilesX, tilesY int) *image.Gray {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	dst := image.NewGray(image.Rect(0, 0, width, height))

	tileW := (width + tilesX - 1) / tilesX
	tileH := (height + tilesY - 1) / tilesY
	nx := (width + tileW - 1) / tileW
	ny := (height + tileH - 1) / tileH

	luts := make([][256]uint8, nx*ny)
	for ty := 0; ty < ny; ty++ {
		for tx := 0; tx < nx; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, width), min(y0+tileH, height)
			luts[ty*nx+tx] = equalizationTable(src, x0, y0, x1, y1, clipLimit)
		}
	}

	for y := 0; y < height; y++ {
		gy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := int(math.Floor(gy))
		fy := gy - float64(ty0)
		ty1 := clamp(ty0+1, 0, ny-1)
		ty0 = clamp(ty0, 0, ny-1)

		for x := 0; x < width; x++ {
			gx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := int(math.Floor(gx))
			fx := gx - float64(tx0)
			tx1 := clamp(tx0+1, 0, nx-1)
			tx0 = clamp(tx0, 0, nx-1)

			v := src.Pix[y*src.Stride+x]
			top := (1-fx)*float64(luts[ty0*nx+tx0][v]) + fx*float64(luts[ty0*nx+tx1][v])
			bottom := (1-fx)*float64(luts[ty1*nx+tx0][v]) + fx*float64(luts[ty1*nx+tx1][v])
			out := (1-fy)*top + fy*bottom
			dst.Pix[y*dst.Stride+x] = uint8(clamp(int(math.Round(out)), 0, 255))
		}
	}
	return dst
}

// equalizationTable builds the clipped histogram-equalization lookup table for
// the tile [x0,x1) x [y0,y1).
func equalizationTable(src *image.Gray, x0, y0, x1, y1 int, clipLimit float64) [256]uint8 {
	var hist [256]int
	for y := y0; y < y1; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+x1]
		for _, v := range row[x0:] {
			hist[v]++
		}
	}
	area := (x1 - x0) * (y1 - y0)

	limit := int(clipLimit * float64(area) / 256)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for i := range hist {
		if hist[i] > limit {
			excess += hist[i] - limit
			hist[i] = limit
		}
	}
	bonus := excess / 256
	residual := excess - bonus*256
	for i := range hist {
		hist[i] += bonus
	}
	if residual > 0 {
		stride := max(256/residual, 1)
		for i := 0; i < 256 && residual > 0; i += stride {
			hist[i]++
			residual--
		}
	}

	var lut [256]uint8
	scale := 255.0 / float64(area)
	cdf := 0
	for i := range hist {
		cdf += hist[i]
		lut[i] = uint8(clamp(int(math.Round(float64(cdf)*scale)), 0, 255))
	}
	return lut
}

// sharpenKernel is the classic 3x3 "unsharp" kernel; its weights sum to 1 so
// flat regions keep their intensity.
var sharpenKernel = []float64{
	-1, -1, -1,
	-1, 9, -1,
	-1, -1, -1,
}

// sharpen convolves a gray raster with sharpenKernel, saturating to [0,255].
// The raster is padded with reflect101 first and the padding cropped off
// again, so borders mirror like the other filters.
func sharpen(src *image.Gray) *image.Gray {
	kernel := convolution.NewKernel(3, 3)
	copy(kernel.Matrix, sharpenKernel)

	rgba := convolution.Convolve(padReflect101(src, 1), kernel, &convolution.Options{Bias: 0, Wrap: false, KeepAlpha: true})

	bounds := rgba.Bounds()
	width, height := bounds.Dx()-2, bounds.Dy()-2
	dst := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := rgba.PixOffset(bounds.Min.X+1, bounds.Min.Y+y+1)
		for x := 0; x < width; x++ {
			dst.Pix[y*dst.Stride+x] = rgba.Pix[row+x*4]
		}
	}
	return dst
}
