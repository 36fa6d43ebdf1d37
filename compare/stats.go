package compare

import (
	"fmt"
	"math"
	"sort"

	"github.com/aaronsteers/ReelTrust/fingerprint"
)

// StatsWindowEvidence is a worst-window entry for the frame-statistics
// branch: both halves of the metric pair (correlation, MAD) are reported
// together since spec.md §4.3 ranks by correlation but the consumer needs
// both.
type StatsWindowEvidence struct {
	StartFrame     int     `json:"start_frame"`
	EndFrame       int     `json:"end_frame"`
	StartTime      string  `json:"start_time"`
	EndTime        string  `json:"end_time"`
	Correlation    float64 `json:"correlation"`
	MAD            float64 `json:"mad"`
	WorstFrame     int     `json:"worst_frame"`
	WorstFrameTime string  `json:"worst_frame_time"`
}

// StatsVerdict is the output shape for the frame-statistics comparator,
// whose verdict metric is a pair: (min correlation, max MAD).
type StatsVerdict struct {
	FrameCount           int                    `json:"frame_count"`
	WindowCount          int                    `json:"window_count"`
	WorstCorrelation     float64                `json:"worst_window_correlation"`
	WorstMAD             float64                `json:"worst_window_mad"`
	OverallCorrelation   float64                `json:"overall_correlation"`
	OverallMAD           float64                `json:"overall_mad"`
	IsValid              bool                   `json:"is_valid"`
	CorrelationThreshold float64                `json:"correlation_threshold"`
	MADThreshold         float64                `json:"mad_threshold"`
	WorstWindows         []StatsWindowEvidence  `json:"worst_windows"`
}

// CompareStats implements the Windowed Comparator's frame-statistics branch
// (spec.md §4.3): per window, mean-across-six-channels Pearson correlation
// and mean-absolute-difference; verdict = (min correlation, max MAD).
func CompareStats(a, b []fingerprint.FrameStats, windowSize int, fps, corrThreshold, madThreshold float64) (StatsVerdict, error) {
	if len(a) != len(b) {
		return StatsVerdict{}, fmt.Errorf("compare.CompareStats: sequence length mismatch: %d vs %d", len(a), len(b))
	}
	n := len(a)

	channelsA := toChannels(a)
	channelsB := toChannels(b)

	windows := partitionWindows(n, windowSize)
	evidence := make([]StatsWindowEvidence, 0, len(windows))
	worstCorr := 1.0
	worstMAD := 0.0

	overallCorrSum, overallMADSum := 0.0, 0.0
	for ch := 0; ch < 6; ch++ {
		overallCorrSum += pearson(channelsA[ch], channelsB[ch])
	}
	for i := range a {
		overallMADSum += frameMAD(a[i], b[i])
	}
	overallCorr := overallCorrSum / 6
	overallMAD := overallMADSum / float64(n)

	for _, w := range windows {
		start, end := w[0], w[1]

		var corrSum float64
		for ch := 0; ch < 6; ch++ {
			corrSum += pearson(channelsA[ch][start:end], channelsB[ch][start:end])
		}
		windowCorr := corrSum / 6

		var madSum float64
		worstFrame := start
		worstFrameMAD := -1.0
		for i := start; i < end; i++ {
			fm := frameMAD(a[i], b[i])
			madSum += fm
			if fm > worstFrameMAD {
				worstFrameMAD = fm
				worstFrame = i
			}
		}
		windowMAD := madSum / float64(end-start)

		if windowCorr < worstCorr {
			worstCorr = windowCorr
		}
		if windowMAD > worstMAD {
			worstMAD = windowMAD
		}

		evidence = append(evidence, StatsWindowEvidence{
			StartFrame:     start,
			EndFrame:       end,
			StartTime:      formatTimestamp(frameTime(start, fps)),
			EndTime:        formatTimestamp(frameTime(end, fps)),
			Correlation:    windowCorr,
			MAD:            windowMAD,
			WorstFrame:     worstFrame,
			WorstFrameTime: formatTimestamp(frameTime(worstFrame, fps)),
		})
	}

	sort.SliceStable(evidence, func(i, j int) bool { return evidence[i].Correlation < evidence[j].Correlation })
	worst := evidence
	if len(worst) > 3 {
		worst = worst[:3]
	}

	if len(windows) == 0 {
		worstCorr, worstMAD = 1.0, 0.0
	}

	return StatsVerdict{
		FrameCount:           n,
		WindowCount:          len(windows),
		WorstCorrelation:     worstCorr,
		WorstMAD:             worstMAD,
		OverallCorrelation:   overallCorr,
		OverallMAD:           overallMAD,
		IsValid:              len(windows) > 0 && worstCorr >= corrThreshold && worstMAD < madThreshold,
		CorrelationThreshold: corrThreshold,
		MADThreshold:         madThreshold,
		WorstWindows:         append([]StatsWindowEvidence(nil), worst...),
	}, nil
}

// toChannels splits a FrameStats sequence into six parallel real arrays:
// y_mean, y_std, u_mean, u_std, v_mean, v_std, matching spec.md §4.3's
// "extract six parallel real-valued arrays per side."
func toChannels(stats []fingerprint.FrameStats) [6][]float64 {
	var ch [6][]float64
	for i := range ch {
		ch[i] = make([]float64, len(stats))
	}
	for i, s := range stats {
		ch[0][i] = s.YMean
		ch[1][i] = s.YStd
		ch[2][i] = s.UMean
		ch[3][i] = s.UStd
		ch[4][i] = s.VMean
		ch[5][i] = s.VStd
	}
	return ch
}

func frameMAD(a, b fingerprint.FrameStats) float64 {
	diffs := []float64{
		math.Abs(a.YMean - b.YMean),
		math.Abs(a.YStd - b.YStd),
		math.Abs(a.UMean - b.UMean),
		math.Abs(a.UStd - b.UStd),
		math.Abs(a.VMean - b.VMean),
		math.Abs(a.VStd - b.VStd),
	}
	return mean(diffs)
}

// pearson computes the Pearson correlation coefficient. An undefined case
// (zero variance on either side, including single-element windows) is
// treated as 1.0 if the two arrays are approximately equal, else 0.0, per
// spec.md §4.3.
func pearson(xs, ys []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 1.0
	}
	mx, my := mean(xs), mean(ys)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - mx
		dy := ys[i] - my
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 || varY == 0 {
		if allClose(xs, ys) {
			return 1.0
		}
		return 0.0
	}

	corr := cov / math.Sqrt(varX*varY)
	if math.IsNaN(corr) {
		if allClose(xs, ys) {
			return 1.0
		}
		return 0.0
	}
	return corr
}

func allClose(xs, ys []float64) bool {
	const atol, rtol = 1e-8, 1e-5
	for i := range xs {
		if math.Abs(xs[i]-ys[i]) > atol+rtol*math.Abs(ys[i]) {
			return false
		}
	}
	return true
}
