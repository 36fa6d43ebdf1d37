package compare

import (
	"fmt"
	"math/bits"
	"sort"
)

// HammingDistance returns popcount(a XOR b).
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// CompareHamming implements the Windowed Comparator for 64-bit fingerprint
// sequences (dHash or pHash): spec.md §4.3's Hamming-distance branch.
func CompareHamming(a, b []uint64, windowSize int, fps, thresholdBits float64) (Verdict, error) {
	if len(a) != len(b) {
		return Verdict{}, fmt.Errorf("compare.CompareHamming: sequence length mismatch: %d vs %d", len(a), len(b))
	}
	n := len(a)

	distances := make([]float64, n)
	for i := range a {
		distances[i] = float64(HammingDistance(a[i], b[i]))
	}

	windows := partitionWindows(n, windowSize)
	evidence := make([]WindowEvidence, 0, len(windows))
	worstMetric := 0.0

	for _, w := range windows {
		start, end := w[0], w[1]
		slice := distances[start:end]
		m := mean(slice)
		if m > worstMetric {
			worstMetric = m
		}

		maxVal := slice[0]
		maxFrame := start
		for i, v := range slice {
			if v > maxVal {
				maxVal = v
				maxFrame = start + i
			}
		}

		evidence = append(evidence, WindowEvidence{
			StartFrame:     start,
			EndFrame:       end,
			StartTime:      formatTimestamp(frameTime(start, fps)),
			EndTime:        formatTimestamp(frameTime(end, fps)),
			Aggregate:      m,
			WorstFrame:     maxFrame,
			WorstFrameTime: formatTimestamp(frameTime(maxFrame, fps)),
		})
	}

	sort.SliceStable(evidence, func(i, j int) bool { return evidence[i].Aggregate > evidence[j].Aggregate })
	worst := evidence
	if len(worst) > 3 {
		worst = worst[:3]
	}

	return Verdict{
		FrameCount:    n,
		WindowCount:   len(windows),
		WorstMetric:   worstMetric,
		OverallMetric: mean(distances),
		IsValid:       worstMetric < thresholdBits,
		Threshold:     thresholdBits,
		WorstWindows:  append([]WindowEvidence(nil), worst...),
	}, nil
}
