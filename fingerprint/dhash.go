package fingerprint

import (
	"image"

	"github.com/disintegration/imaging"
)

// ComputeDHash implements spec.md §4.2's difference hash: resample luminance
// to (hashSize+1)×hashSize with a Lanczos filter, compare each pixel to its
// left neighbor, and pack the booleans row-major with bit 0 = LSB.
func ComputeDHash(img image.Image, hashSize int) uint64 {
	resized := imaging.Resize(img, hashSize+1, hashSize, imaging.Lanczos)
	lum := luminance(resized)

	var hash uint64
	bit := 0
	for r := 0; r < hashSize; r++ {
		for c := 0; c < hashSize; c++ {
			if lum[r][c+1] > lum[r][c] {
				hash |= 1 << uint(bit)
			}
			bit++
		}
	}
	return hash
}
