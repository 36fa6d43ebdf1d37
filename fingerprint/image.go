package fingerprint

import (
	"image"
	"image/color"

	"github.com/aaronsteers/ReelTrust/media"
)

// frameToImage converts a decoded BGR24 frame into a standard image.Image so
// it can be fed to github.com/disintegration/imaging for Lanczos resampling.
func frameToImage(f *media.Frame) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			b, g, r := f.At(x, y)
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

// luminance extracts an OpenCV-convention (ITU-R BT.601) luma matrix,
// row-major, from an image already resized to the target tile dimensions.
func luminance(img image.Image) [][]float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([][]float64, h)
	for y := 0; y < h; y++ {
		row := make([]float64, w)
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// RGBA() returns 16-bit-scaled components; reduce to 8-bit range.
			rf := float64(r >> 8)
			gf := float64(g >> 8)
			bf := float64(b >> 8)
			row[x] = 0.299*rf + 0.587*gf + 0.114*bf
		}
		out[y] = row
	}
	return out
}
