package compare

import "sort"

// CompareSSIM implements the SSIM Comparator (spec.md §4.4): structurally
// identical to CompareHamming's windowing, but higher is better and the
// worst windows are the lowest-mean ones.
func CompareSSIM(scores []float64, windowSize int, fps, threshold float64) (Verdict, error) {
	n := len(scores)
	windows := partitionWindows(n, windowSize)
	evidence := make([]WindowEvidence, 0, len(windows))
	worstMetric := 1.0

	for _, w := range windows {
		start, end := w[0], w[1]
		slice := scores[start:end]
		m := mean(slice)
		if m < worstMetric {
			worstMetric = m
		}

		minVal := slice[0]
		minFrame := start
		for i, v := range slice {
			if v < minVal {
				minVal = v
				minFrame = start + i
			}
		}

		evidence = append(evidence, WindowEvidence{
			StartFrame:     start,
			EndFrame:       end,
			StartTime:      formatTimestamp(frameTime(start, fps)),
			EndTime:        formatTimestamp(frameTime(end, fps)),
			Aggregate:      m,
			WorstFrame:     minFrame,
			WorstFrameTime: formatTimestamp(frameTime(minFrame, fps)),
		})
	}

	sort.SliceStable(evidence, func(i, j int) bool { return evidence[i].Aggregate < evidence[j].Aggregate })
	worst := evidence
	if len(worst) > 3 {
		worst = worst[:3]
	}

	if len(windows) == 0 {
		worstMetric = 0
	}

	return Verdict{
		FrameCount:    n,
		WindowCount:   len(windows),
		WorstMetric:   worstMetric,
		OverallMetric: mean(scores),
		IsValid:       len(windows) > 0 && worstMetric >= threshold,
		Threshold:     threshold,
		WorstWindows:  append([]WindowEvidence(nil), worst...),
	}, nil
}
