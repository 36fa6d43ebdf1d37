package media

import "fmt"

// buildRecompressArgs builds the ffmpeg argument list for the Recompress
// operation: scale to targetWidth (height derived, rounded to the nearest
// even integer to satisfy H.264's chroma subsampling), H.264 at the given
// CRF/preset, audio stripped. Kept as a pure function returning []string,
// separate from execution, following the decision-tree style of
// BuildRemuxArgs in the pack's xg2g example.
func buildRecompressArgs(srcPath, destPath string, targetWidth, crf int, preset string) []string {
	return []string{
		"-y",
		"-i", srcPath,
		"-vf", fmt.Sprintf("scale=%d:-2", targetWidth),
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", fmt.Sprintf("%d", crf),
		"-an",
		destPath,
	}
}

// buildDecodeArgs builds the ffmpeg argument list that streams raw BGR24
// frames to stdout for DecodeFrames to read.
func buildDecodeArgs(srcPath string) []string {
	return []string{
		"-i", srcPath,
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-vcodec", "rawvideo",
		"pipe:1",
	}
}

// buildExtractAudioArgs builds the ffmpeg argument list extracting srcPath's
// audio track to a PCM 16-bit stereo 44.1 kHz WAV intermediate, per spec.md
// §4.5 step 3.
func buildExtractAudioArgs(srcPath, destPath string) []string {
	return []string{
		"-y",
		"-i", srcPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "44100",
		"-ac", "2",
		destPath,
	}
}

// buildSSIMArgs builds the ffmpeg argument list comparing two media files
// with the ssim filter, writing per-frame scores to statsFile.
func buildSSIMArgs(pathA, pathB, statsFile string) []string {
	return []string{
		"-i", pathA,
		"-i", pathB,
		"-filter_complex", fmt.Sprintf("ssim=stats_file=%s", statsFile),
		"-f", "null",
		"-",
	}
}

// buildExtractClipArgs builds the ffmpeg argument list extracting
// [start, start+duration) from srcPath into destPath, re-encoding so the
// clip is independently playable.
func buildExtractClipArgs(srcPath, destPath string, startSeconds, durationSeconds float64) []string {
	if startSeconds < 0 {
		startSeconds = 0
	}
	return []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", startSeconds),
		"-i", srcPath,
		"-t", fmt.Sprintf("%.3f", durationSeconds),
		"-c:v", "libx264",
		"-preset", "fast",
		"-an",
		destPath,
	}
}

// buildSideBySideArgs builds a filter_complex that scales the right input to
// match the left input's dimensions, stacks them horizontally, and overlays
// two text labels, clipped to [start, start+duration).
func buildSideBySideArgs(leftPath, rightPath, destPath string, startSeconds, durationSeconds float64, leftLabel, rightLabel string) []string {
	if startSeconds < 0 {
		startSeconds = 0
	}
	filter := fmt.Sprintf(
		"[1:v][0:v]scale2ref[right][left];"+
			"[left]drawtext=text='%s':x=10:y=10:fontcolor=white:box=1:boxcolor=black@0.5[left_l];"+
			"[right]drawtext=text='%s':x=10:y=10:fontcolor=white:box=1:boxcolor=black@0.5[right_l];"+
			"[left_l][right_l]hstack=inputs=2[out]",
		escapeDrawtext(leftLabel), escapeDrawtext(rightLabel),
	)
	return []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", startSeconds),
		"-i", leftPath,
		"-ss", fmt.Sprintf("%.3f", startSeconds),
		"-i", rightPath,
		"-t", fmt.Sprintf("%.3f", durationSeconds),
		"-filter_complex", filter,
		"-map", "[out]",
		"-c:v", "libx264",
		"-preset", "fast",
		"-an",
		destPath,
	}
}

// buildAlignmentStripesArgs builds the filter_complex that crops five
// horizontal stripes at fixed vertical positions and stacks them vertically
// into one low-fps review video. Grounded on original_source/regions.py's
// extract_all_alignment_stripes.
func buildAlignmentStripesArgs(srcPath, destPath string, width, height, stripeHeight int) []string {
	positions := []float64{0.125, 0.25, 0.50, 0.75, 0.875}
	filters := make([]string, 0, len(positions)+2)
	for i, pos := range positions {
		y := int(pos*float64(height)) - stripeHeight/2
		if y < 0 {
			y = 0
		}
		if y+stripeHeight > height {
			y = height - stripeHeight
		}
		filters = append(filters, fmt.Sprintf("[0:v]crop=%d:%d:0:%d[stripe%d]", width, stripeHeight, y, i))
	}
	inputs := ""
	for i := range positions {
		inputs += fmt.Sprintf("[stripe%d]", i)
	}
	filters = append(filters, fmt.Sprintf("%svstack=inputs=%d[stacked]", inputs, len(positions)))
	filters = append(filters, "[stacked]fps=4[out]")

	filterComplex := filters[0]
	for _, f := range filters[1:] {
		filterComplex += ";" + f
	}

	return []string{
		"-y",
		"-i", srcPath,
		"-filter_complex", filterComplex,
		"-map", "[out]",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-an",
		destPath,
	}
}

// buildCropRegionArgs builds the ffmpeg argument list that crops a
// concentric rectangle covering `fraction` of width and height, centered,
// matching original_source/regions.py's compute_region_fingerprints margin
// math: margin = (1-fraction)/2 on each side.
func buildCropRegionArgs(srcPath, destPath string, width, height int, fraction float64, crf int) []string {
	marginFraction := (1.0 - fraction) / 2.0
	cropX := int(float64(width) * marginFraction)
	cropY := int(float64(height) * marginFraction)
	cropW := int(float64(width) * fraction)
	cropH := int(float64(height) * fraction)
	return []string{
		"-y",
		"-i", srcPath,
		"-vf", fmt.Sprintf("crop=%d:%d:%d:%d", cropW, cropH, cropX, cropY),
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", fmt.Sprintf("%d", crf),
		"-an",
		destPath,
	}
}

func escapeDrawtext(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'', ':', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
