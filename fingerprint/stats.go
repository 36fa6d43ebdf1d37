package fingerprint

import (
	"math"

	"github.com/aaronsteers/ReelTrust/media"
)

// FrameStats is the six-field per-frame record spec.md §3 defines: mean and
// population standard deviation of each YUV channel, rounded to two
// decimals.
type FrameStats struct {
	YMean float64 `json:"y_mean"`
	YStd  float64 `json:"y_std"`
	UMean float64 `json:"u_mean"`
	UStd  float64 `json:"u_std"`
	VMean float64 `json:"v_mean"`
	VStd  float64 `json:"v_std"`
}

// ComputeFrameStats converts a frame to YUV using the BT.601-range
// convention OpenCV's COLOR_BGR2YUV applies, then computes mean and
// population standard deviation of each channel.
func ComputeFrameStats(f *media.Frame) FrameStats {
	n := f.Width * f.Height
	var ySum, uSum, vSum float64
	ys := make([]float64, 0, n)
	us := make([]float64, 0, n)
	vs := make([]float64, 0, n)

	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			b, g, r := f.At(x, y)
			rf, gf, bf := float64(r), float64(g), float64(b)

			yv := 0.299*rf + 0.587*gf + 0.114*bf
			uv := 0.492*(bf-yv) + 128
			vv := 0.877*(rf-yv) + 128

			ys = append(ys, yv)
			us = append(us, uv)
			vs = append(vs, vv)
			ySum += yv
			uSum += uv
			vSum += vv
		}
	}

	count := float64(n)
	yMean := ySum / count
	uMean := uSum / count
	vMean := vSum / count

	return FrameStats{
		YMean: round2(yMean),
		YStd:  round2(popStdDev(ys, yMean)),
		UMean: round2(uMean),
		UStd:  round2(popStdDev(us, uMean)),
		VMean: round2(vMean),
		VStd:  round2(popStdDev(vs, vMean)),
	}
}

func popStdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
