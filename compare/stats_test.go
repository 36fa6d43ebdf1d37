package compare

import (
	"testing"

	"github.com/aaronsteers/ReelTrust/fingerprint"
)

func makeStats(n int, fn func(i int) fingerprint.FrameStats) []fingerprint.FrameStats {
	out := make([]fingerprint.FrameStats, n)
	for i := range out {
		out[i] = fn(i)
	}
	return out
}

func TestCompareStatsIdenticalSequencesValidate(t *testing.T) {
	a := makeStats(20, func(i int) fingerprint.FrameStats {
		return fingerprint.FrameStats{YMean: 100, YStd: 10, UMean: 50, UStd: 5, VMean: 50, VStd: 5}
	})
	verdict, err := CompareStats(a, a, 5, 30, 0.9, 5)
	if err != nil {
		t.Fatalf("CompareStats: %v", err)
	}
	if !verdict.IsValid {
		t.Fatalf("expected valid verdict for identical stats, got %+v", verdict)
	}
	if verdict.WorstCorrelation != 1.0 {
		t.Fatalf("expected perfect correlation for identical sequences, got %v", verdict.WorstCorrelation)
	}
	if verdict.WorstMAD != 0 {
		t.Fatalf("expected zero MAD for identical sequences, got %v", verdict.WorstMAD)
	}
}

func TestCompareStatsLengthMismatchErrors(t *testing.T) {
	a := makeStats(2, func(i int) fingerprint.FrameStats { return fingerprint.FrameStats{} })
	b := makeStats(3, func(i int) fingerprint.FrameStats { return fingerprint.FrameStats{} })
	if _, err := CompareStats(a, b, 5, 30, 0.9, 5); err == nil {
		t.Fatalf("expected error for mismatched lengths")
	}
}

func TestCompareStatsDivergentWindowInvalidates(t *testing.T) {
	a := makeStats(20, func(i int) fingerprint.FrameStats {
		return fingerprint.FrameStats{YMean: 100, YStd: 10, UMean: 50, UStd: 5, VMean: 50, VStd: 5}
	})
	b := makeStats(20, func(i int) fingerprint.FrameStats {
		if i >= 8 && i < 12 {
			return fingerprint.FrameStats{YMean: 200, YStd: 40, UMean: 10, UStd: 30, VMean: 90, VStd: 1}
		}
		return fingerprint.FrameStats{YMean: 100, YStd: 10, UMean: 50, UStd: 5, VMean: 50, VStd: 5}
	})

	verdict, err := CompareStats(a, b, 4, 30, 0.9, 5)
	if err != nil {
		t.Fatalf("CompareStats: %v", err)
	}
	if verdict.IsValid {
		t.Fatalf("expected invalid verdict: corrupted window should breach MAD/correlation thresholds")
	}
	if verdict.WorstMAD <= 5 {
		t.Fatalf("expected worst MAD above threshold, got %v", verdict.WorstMAD)
	}
}

func TestPearsonConstantSequencesAreEqual(t *testing.T) {
	xs := []float64{5, 5, 5, 5}
	ys := []float64{5, 5, 5, 5}
	if got := pearson(xs, ys); got != 1.0 {
		t.Fatalf("pearson on identical constant sequences = %v, want 1.0", got)
	}
}

func TestPearsonConstantSequencesDifferentValuesAreZero(t *testing.T) {
	xs := []float64{5, 5, 5, 5}
	ys := []float64{9, 9, 9, 9}
	if got := pearson(xs, ys); got != 0.0 {
		t.Fatalf("pearson on differing constant sequences = %v, want 0.0", got)
	}
}

func TestPearsonEmptyIsOne(t *testing.T) {
	if got := pearson(nil, nil); got != 1.0 {
		t.Fatalf("pearson(nil, nil) = %v, want 1.0", got)
	}
}
