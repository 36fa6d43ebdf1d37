package fingerprint

import (
	"testing"

	"github.com/aaronsteers/ReelTrust/media"
)

func solidFrame(w, h int, b, g, r byte) *media.Frame {
	pix := make([]byte, w*h*3)
	for i := 0; i < w*h; i++ {
		pix[i*3] = b
		pix[i*3+1] = g
		pix[i*3+2] = r
	}
	return &media.Frame{Width: w, Height: h, Pix: pix}
}

func TestComputeFrameStatsSolidFrameHasZeroStdDev(t *testing.T) {
	f := solidFrame(16, 16, 100, 110, 120)
	stats := ComputeFrameStats(f)
	if stats.YStd != 0 || stats.UStd != 0 || stats.VStd != 0 {
		t.Fatalf("expected zero stddev for a solid-color frame, got %+v", stats)
	}
}

func TestComputeFrameStatsRoundsToTwoDecimals(t *testing.T) {
	f := solidFrame(4, 4, 10, 20, 30)
	stats := ComputeFrameStats(f)
	if round2(stats.YMean) != stats.YMean {
		t.Fatalf("YMean %v not rounded to 2 decimals", stats.YMean)
	}
}

func TestPopStdDevEmptyIsZero(t *testing.T) {
	if got := popStdDev(nil, 0); got != 0 {
		t.Fatalf("popStdDev(nil) = %v, want 0", got)
	}
}

func TestComputeFrameStatsDiffersAcrossDistinctFrames(t *testing.T) {
	a := solidFrame(16, 16, 10, 10, 10)
	b := solidFrame(16, 16, 200, 200, 200)
	sa := ComputeFrameStats(a)
	sb := ComputeFrameStats(b)
	if sa.YMean == sb.YMean {
		t.Fatalf("expected distinct Y means for a dark vs bright frame")
	}
}
