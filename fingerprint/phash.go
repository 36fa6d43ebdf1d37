package fingerprint

import (
	"image"
	"sort"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/dsp/fourier"
)

// ComputePHash implements spec.md §4.2's DCT perceptual hash: resample
// luminance to (4·hashSize)×(4·hashSize) with a Lanczos filter, take a 2-D
// DCT-II (OpenCV's dct convention: separable row-then-column DCT-II), keep
// the top-left hashSize×hashSize low-frequency block, and set bit i when
// that block's row-major coefficient i exceeds the block's median.
func ComputePHash(img image.Image, hashSize int) uint64 {
	tile := hashSize * 4
	resized := imaging.Resize(img, tile, tile, imaging.Lanczos)
	lum := luminance(resized)

	dct := dct2D(lum, tile)

	coeffs := make([]float64, 0, hashSize*hashSize)
	for r := 0; r < hashSize; r++ {
		for c := 0; c < hashSize; c++ {
			coeffs = append(coeffs, dct[r][c])
		}
	}
	median := medianOf(coeffs)

	var hash uint64
	for i, v := range coeffs {
		if v > median {
			hash |= 1 << uint(i)
		}
	}
	return hash
}

// dct2D performs a separable 2-D DCT-II over an n×n matrix: DCT-II along
// each row, then DCT-II along each resulting column.
func dct2D(m [][]float64, n int) [][]float64 {
	t := fourier.NewDCT(n)

	rowPass := make([][]float64, n)
	for r := 0; r < n; r++ {
		rowPass[r] = t.Transform(nil, m[r])
	}

	out := make([][]float64, n)
	for r := 0; r < n; r++ {
		out[r] = make([]float64, n)
	}
	col := make([]float64, n)
	for c := 0; c < n; c++ {
		for r := 0; r < n; r++ {
			col[r] = rowPass[r][c]
		}
		transformed := t.Transform(nil, col)
		for r := 0; r < n; r++ {
			out[r][c] = transformed[r]
		}
	}
	return out
}

func medianOf(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
