// Package compare implements the Windowed Comparator and SSIM Comparator:
// both reduce two equal-length per-frame sequences to a worst-window
// verdict, never an overall average, so a short edit cannot be diluted by a
// long authentic tail (spec.md §4.3, §4.4). They share the same window
// partitioning and timestamp formatting core; the SSIM Comparator is broken
// out only because its input comes from the Media Adapter rather than the
// Fingerprint Engine.
package compare

import "fmt"

// WindowEvidence is one ranked worst-window entry: start/end frame,
// formatted wall-clock timestamps, the window-level aggregate, and the
// single most-anomalous frame within the window.
type WindowEvidence struct {
	StartFrame     int     `json:"start_frame"`
	EndFrame       int     `json:"end_frame"`
	StartTime      string  `json:"start_time"`
	EndTime        string  `json:"end_time"`
	Aggregate      float64 `json:"aggregate"`
	WorstFrame     int     `json:"worst_frame"`
	WorstFrameTime string  `json:"worst_frame_time"`
}

// Verdict is the output shape for the Hamming-distance and SSIM comparators.
type Verdict struct {
	FrameCount    int              `json:"frame_count"`
	WindowCount   int              `json:"window_count"`
	WorstMetric   float64          `json:"worst_window_metric"`
	OverallMetric float64          `json:"overall_metric"`
	IsValid       bool             `json:"is_valid"`
	Threshold     float64          `json:"threshold"`
	WorstWindows  []WindowEvidence `json:"worst_windows"`
}

// partitionWindows splits [0,n) into non-overlapping windows of size,
// the last one short if n is not a multiple of size. n <= size yields a
// single implicit window covering all frames (spec.md's N < window_size
// boundary case falls out of this loop with no special case needed).
func partitionWindows(n, size int) [][2]int {
	if size <= 0 {
		size = n
	}
	var windows [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		windows = append(windows, [2]int{start, end})
	}
	if len(windows) == 0 && n > 0 {
		windows = [][2]int{{0, n}}
	}
	return windows
}

// formatTimestamp renders a frame offset in seconds as zero-padded MM:SS,
// or HH:MM:SS once the duration reaches an hour.
func formatTimestamp(seconds float64) string {
	total := int(seconds + 0.5)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func frameTime(frame int, fps float64) float64 {
	if fps <= 0 {
		return 0
	}
	return float64(frame) / fps
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}
