package fingerprint

import (
	"image/color"
	"testing"
)

func TestComputePHashIsDeterministic(t *testing.T) {
	img := gradientImage(64, 64)
	h1 := ComputePHash(img, 8)
	h2 := ComputePHash(img, 8)
	if h1 != h2 {
		t.Fatalf("ComputePHash not deterministic: %x vs %x", h1, h2)
	}
}

func TestComputePHashDiffersAcrossDistinctImages(t *testing.T) {
	a := gradientImage(64, 64)
	b := solidImage(64, 64, color.NRGBA{R: 180, G: 180, B: 180, A: 255})
	if ComputePHash(a, 8) == ComputePHash(b, 8) {
		t.Fatalf("expected gradient and solid images to phash differently")
	}
}

func TestMedianOfOddAndEvenLengths(t *testing.T) {
	if got := medianOf([]float64{3, 1, 2}); got != 2 {
		t.Fatalf("medianOf odd = %v, want 2", got)
	}
	if got := medianOf([]float64{1, 2, 3, 4}); got != 2.5 {
		t.Fatalf("medianOf even = %v, want 2.5", got)
	}
	if got := medianOf(nil); got != 0 {
		t.Fatalf("medianOf nil = %v, want 0", got)
	}
}

func TestDCT2DPreservesDimensions(t *testing.T) {
	n := 8
	m := make([][]float64, n)
	for r := range m {
		m[r] = make([]float64, n)
		for c := range m[r] {
			m[r][c] = float64(r + c)
		}
	}
	out := dct2D(m, n)
	if len(out) != n {
		t.Fatalf("dct2D row count = %d, want %d", len(out), n)
	}
	for _, row := range out {
		if len(row) != n {
			t.Fatalf("dct2D row length = %d, want %d", len(row), n)
		}
	}
}
