package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestHasColorChannels(t *testing.T) {
	rect := image.Rect(0, 0, 2, 2)
	tests := []struct {
		name string
		img  image.Image
		want bool
	}{
		{"gray", image.NewGray(rect), false},
		{"gray16", image.NewGray16(rect), false},
		{"rgba", image.NewRGBA(rect), true},
		{"nrgba", image.NewNRGBA(rect), true},
		{"ycbcr", image.NewYCbCr(rect, image.YCbCrSubsampleRatio420), true},
		{"paletted", image.NewPaletted(rect, color.Palette{color.Black, color.White}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasColorChannels(tt.img); got != tt.want {
				t.Errorf("hasColorChannels: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToGray_CopiesGray(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 3))
	src.SetGray(1, 1, color.Gray{Y: 200})

	dst, converted := toGray(src)
	if converted {
		t.Error("gray input should not be reported as converted")
	}
	if dst.GrayAt(1, 1).Y != 200 {
		t.Errorf("pixel: got %d, want 200", dst.GrayAt(1, 1).Y)
	}

	dst.SetGray(1, 1, color.Gray{Y: 0})
	if src.GrayAt(1, 1).Y != 200 {
		t.Error("toGray returned a raster sharing pixels with its input")
	}
}

func TestToGray_Gray16(t *testing.T) {
	src := image.NewGray16(image.Rect(0, 0, 1, 1))
	src.SetGray16(0, 0, color.Gray16{Y: 0xABCD})

	dst, converted := toGray(src)
	if converted {
		t.Error("gray16 input should not be reported as converted")
	}
	if got := dst.GrayAt(0, 0).Y; got != 0xAB {
		t.Errorf("pixel: got %#x, want 0xab", got)
	}
}

func TestToGray_Luminance(t *testing.T) {
	tests := []struct {
		name string
		c    color.RGBA
		want uint8
	}{
		{"red", color.RGBA{255, 0, 0, 255}, 76},
		{"green", color.RGBA{0, 255, 0, 255}, 150},
		{"blue", color.RGBA{0, 0, 255, 255}, 29},
		{"white", color.RGBA{255, 255, 255, 255}, 255},
		{"black", color.RGBA{0, 0, 0, 255}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst, converted := toGray(createInMemoryImage(2, 2, tt.c))
			if !converted {
				t.Error("color input should be reported as converted")
			}
			got := int(dst.GrayAt(0, 0).Y)
			if got < int(tt.want)-1 || got > int(tt.want)+1 {
				t.Errorf("luminance: got %d, want %d±1", got, tt.want)
			}
		})
	}
}

func TestToGray_MovesOriginToZero(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 10, 10))
	src.SetGray(5, 6, color.Gray{Y: 99})
	sub := src.SubImage(image.Rect(4, 4, 8, 8))

	dst, _ := toGray(sub)
	if dst.Bounds() != image.Rect(0, 0, 4, 4) {
		t.Fatalf("bounds: got %v, want (0,0)-(4,4)", dst.Bounds())
	}
	if dst.GrayAt(1, 2).Y != 99 {
		t.Errorf("translated pixel: got %d, want 99", dst.GrayAt(1, 2).Y)
	}
}

func TestSurfaceChroma(t *testing.T) {
	tests := []struct {
		name    string
		img     image.Image
		wantMin float64
		wantMax float64
	}{
		{"nil", nil, 0, 0},
		{"gray raster", image.NewGray(image.Rect(0, 0, 4, 4)), 0, 0},
		{"neutral rgba", createInMemoryImage(8, 8, color.RGBA{128, 128, 128, 255}), 0, 0.01},
		{"transparent", createInMemoryImage(8, 8, color.RGBA{0, 0, 0, 0}), 0, 0},
		{"saturated red", createInMemoryImage(8, 8, color.RGBA{255, 0, 0, 255}), 0.5, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SurfaceChroma(tt.img)
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("SurfaceChroma: got %.4f, want in [%.2f, %.2f]", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestSurfaceChroma_LargeImageIsSampled(t *testing.T) {
	img := createInMemoryImage(600, 600, color.RGBA{0, 0, 200, 255})
	small := createInMemoryImage(6, 6, color.RGBA{0, 0, 200, 255})

	got, want := SurfaceChroma(img), SurfaceChroma(small)
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("sampled chroma: got %.6f, want %.6f", got, want)
	}
}
