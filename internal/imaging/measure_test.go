package imaging

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestMeasureQuality(t *testing.T) {
	tests := []struct {
		name           string
		img            *image.Gray
		wantBrightness float64
		wantContrast   float64
		wantSNR        float64
	}{
		{"uniform", createUniformGray(10, 10, 128), 128, 0, 0},
		{"black", createUniformGray(10, 10, 0), 0, 0, 0},
		{"half and half", createStepEdge(10, 10, 0, 200), 100, 100, 1},
		{"mid step", createStepEdge(4, 4, 100, 140), 120, 20, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := MeasureQuality(tt.img)

			if math.Abs(m.Brightness-tt.wantBrightness) > 1e-9 {
				t.Errorf("Brightness: got %.3f, want %.3f", m.Brightness, tt.wantBrightness)
			}
			if math.Abs(m.Contrast-tt.wantContrast) > 1e-9 {
				t.Errorf("Contrast: got %.3f, want %.3f", m.Contrast, tt.wantContrast)
			}
			if math.Abs(m.SNREstimate-tt.wantSNR) > 1e-9 {
				t.Errorf("SNREstimate: got %.3f, want %.3f", m.SNREstimate, tt.wantSNR)
			}
			if m.SurfaceChroma != 0 {
				t.Errorf("SurfaceChroma: got %v, want 0", m.SurfaceChroma)
			}
		})
	}
}

func TestMeasureQuality_SNRZeroWhenFlat(t *testing.T) {
	for _, v := range []uint8{0, 1, 128, 255} {
		m := MeasureQuality(createUniformGray(5, 5, v))
		if m.Contrast != 0 || m.SNREstimate != 0 {
			t.Errorf("value %d: contrast %v snr %v, want both 0", v, m.Contrast, m.SNREstimate)
		}
		if m.Sharpness != 0 {
			t.Errorf("value %d: sharpness %v, want 0", v, m.Sharpness)
		}
	}
}

func TestMeasureQuality_SharpnessOrdering(t *testing.T) {
	checker := image.NewGray(image.Rect(0, 0, 32, 32))
	gradient := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if (x+y)%2 == 0 {
				checker.SetGray(x, y, color.Gray{Y: 255})
			}
			gradient.SetGray(x, y, color.Gray{Y: uint8(x * 8)})
		}
	}

	sharp, smooth := MeasureQuality(checker).Sharpness, MeasureQuality(gradient).Sharpness
	if sharp <= smooth {
		t.Errorf("checkerboard sharpness %.1f should exceed gradient sharpness %.1f", sharp, smooth)
	}
}

func TestMeasureQuality_SubImage(t *testing.T) {
	full := createStepEdge(20, 20, 30, 220)
	sub := full.SubImage(image.Rect(5, 5, 15, 15)).(*image.Gray)
	copied, _ := toGray(sub)

	got, want := MeasureQuality(sub), MeasureQuality(copied)
	if got != want {
		t.Errorf("sub-image metrics: got %+v, want %+v", got, want)
	}
}

func TestMeasureQuality_Empty(t *testing.T) {
	if m := MeasureQuality(image.NewGray(image.Rectangle{})); m != (QualityMetrics{}) {
		t.Errorf("empty raster: got %+v, want zero metrics", m)
	}
}

func TestVariance(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5}, 0},
		{"pair", []float64{1, 3}, 1},
		{"spread", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := variance(tt.values); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("variance: got %v, want %v", got, tt.want)
			}
		})
	}
}
