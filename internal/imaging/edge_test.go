package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestReflect101(t *testing.T) {
	tests := []struct {
		i, n int
		want int
	}{
		{0, 5, 0},
		{4, 5, 4},
		{-1, 5, 1},
		{-2, 5, 2},
		{5, 5, 3},
		{6, 5, 2},
		{-4, 5, 4},
		{-4, 2, 0},
		{5, 2, 1},
		{-1, 2, 1},
		{2, 2, 0},
		{-1, 1, 0},
		{1, 1, 0},
	}

	for _, tt := range tests {
		if got := reflect101(tt.i, tt.n); got != tt.want {
			t.Errorf("reflect101(%d, %d): got %d, want %d", tt.i, tt.n, got, tt.want)
		}
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		val, lo, hi int
		want        int
	}{
		{5, 0, 10, 5},
		{-3, 0, 10, 0},
		{12, 0, 10, 10},
		{0, 0, 0, 0},
	}

	for _, tt := range tests {
		if got := clamp(tt.val, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clamp(%d, %d, %d): got %d, want %d", tt.val, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestLaplacian_Uniform(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 6, 4))
	for i := range img.Pix {
		img.Pix[i] = 77
	}

	for i, v := range laplacian(img) {
		if v != 0 {
			t.Fatalf("laplacian[%d]: got %v, want 0", i, v)
		}
	}
}

func TestLaplacian_Impulse(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 5, 5))
	img.SetGray(2, 2, color.Gray{Y: 10})

	out := laplacian(img)
	at := func(x, y int) float64 { return out[y*5+x] }

	if at(2, 2) != -40 {
		t.Errorf("centre: got %v, want -40", at(2, 2))
	}
	for _, p := range []image.Point{{2, 1}, {1, 2}, {3, 2}, {2, 3}} {
		if at(p.X, p.Y) != 10 {
			t.Errorf("neighbour %v: got %v, want 10", p, at(p.X, p.Y))
		}
	}
	if at(0, 0) != 0 {
		t.Errorf("corner: got %v, want 0", at(0, 0))
	}
}
