package media

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/aaronsteers/ReelTrust/internal/reelerr"
)

// Adapter wraps ffmpeg/ffprobe as a black box. It is the only component
// allowed to invoke external decode/encode machinery (spec.md §4.1).
type Adapter struct {
	ffmpegPath  string
	ffprobePath string
	log         *logrus.Logger
}

// NewAdapter constructs an Adapter. A nil logger falls back to logrus's
// standard logger.
func NewAdapter(ffmpegPath, ffprobePath string, log *logrus.Logger) *Adapter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, log: log}
}

func (a *Adapter) run(ctx context.Context, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, truncate(string(out), 2000))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}

// Recompress re-encodes srcPath to destPath at targetWidth/crf/preset,
// H.264, no audio. Fails with a reelerr.MediaFailure error.
func (a *Adapter) Recompress(ctx context.Context, srcPath, destPath string, targetWidth, crf int, preset string) error {
	a.log.WithFields(logrus.Fields{"src": srcPath, "width": targetWidth, "crf": crf, "preset": preset}).Debug("recompressing digest")
	args := buildRecompressArgs(srcPath, destPath, targetWidth, crf, preset)
	if err := a.run(ctx, a.ffmpegPath, args); err != nil {
		return reelerr.Wrap(reelerr.MediaFailure, "media.Recompress", err)
	}
	return nil
}

// ExtractAudio extracts srcPath's audio track to destPath as PCM 16-bit
// stereo 44.1 kHz WAV (spec.md §4.5 step 3).
func (a *Adapter) ExtractAudio(ctx context.Context, srcPath, destPath string) error {
	args := buildExtractAudioArgs(srcPath, destPath)
	if err := a.run(ctx, a.ffmpegPath, args); err != nil {
		return reelerr.Wrap(reelerr.MediaFailure, "media.ExtractAudio", err)
	}
	return nil
}

// CropRegion crops the concentric rectangle covering `fraction` of srcPath's
// width/height (0.75 -> a centered 75% box) into destPath, re-encoded at
// crf for temporary fingerprinting use (SPEC_FULL.md supplement, grounded on
// original_source/regions.py's compute_region_fingerprints).
func (a *Adapter) CropRegion(ctx context.Context, srcPath, destPath string, fraction float64, crf int) error {
	probe, err := a.Probe(ctx, srcPath)
	if err != nil {
		return err
	}
	args := buildCropRegionArgs(srcPath, destPath, probe.Width, probe.Height, fraction, crf)
	if err := a.run(ctx, a.ffmpegPath, args); err != nil {
		return reelerr.Wrap(reelerr.MediaFailure, "media.CropRegion", err)
	}
	return nil
}

type ffprobeFormat struct {
	Format struct {
		Duration string            `json:"duration"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
	Streams []struct {
		CodecType   string `json:"codec_type"`
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		RFrameRate  string `json:"r_frame_rate"`
		NbFrames    string `json:"nb_frames"`
	} `json:"streams"`
}

// Probe returns frame_count, fps (rounded to two decimals) and
// duration_seconds, per spec.md §4.1.
func (a *Adapter) Probe(ctx context.Context, path string) (ProbeResult, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	}
	cmd := exec.CommandContext(ctx, a.ffprobePath, args...)
	out, err := cmd.Output()
	if err != nil {
		return ProbeResult{}, reelerr.Wrap(reelerr.MediaFailure, "media.Probe", err)
	}

	var parsed ffprobeFormat
	if err := json.Unmarshal(out, &parsed); err != nil {
		return ProbeResult{}, reelerr.Wrap(reelerr.MediaFailure, "media.Probe", fmt.Errorf("parse ffprobe json: %w", err))
	}

	var result ProbeResult
	result.DurationSeconds, _ = strconv.ParseFloat(parsed.Format.Duration, 64)

	for _, s := range parsed.Streams {
		if s.CodecType != "video" {
			continue
		}
		result.Width = s.Width
		result.Height = s.Height
		result.FPS = parseRational(s.RFrameRate)
		if n, err := strconv.Atoi(s.NbFrames); err == nil && n > 0 {
			result.FrameCount = n
		}
		break
	}

	if result.FrameCount == 0 {
		count, err := a.countPackets(ctx, path)
		if err == nil {
			result.FrameCount = count
		}
	}

	result.FPS = roundTo(result.FPS, 2)
	return result, nil
}

// countPackets is the exact ffprobe -count_packets fallback the original
// implementation uses (original_source/.../verifier.py: get_video_frame_count).
func (a *Adapter) countPackets(ctx context.Context, path string) (int, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=nb_read_packets",
		"-of", "csv=p=0",
		path,
	}
	cmd := exec.CommandContext(ctx, a.ffprobePath, args...)
	out, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(out)))
}

func parseRational(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

func roundTo(v float64, decimals int) float64 {
	mult := 1.0
	for i := 0; i < decimals; i++ {
		mult *= 10
	}
	if v >= 0 {
		return float64(int64(v*mult+0.5)) / mult
	}
	return float64(int64(v*mult-0.5)) / mult
}

// FrameSequence is a lazy, finite, single-pass decode of one media file in
// BGR24 presentation order. Restartable only by calling DecodeFrames again.
type FrameSequence struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	width  int
	height int
	frameSize int
	index  int
	closed bool
}

// Next returns the next decoded frame, or io.EOF when the stream is
// exhausted.
func (fs *FrameSequence) Next() (*Frame, error) {
	buf := make([]byte, fs.frameSize)
	if _, err := io.ReadFull(fs.reader, buf); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, err
	}
	f := &Frame{Index: fs.index, Width: fs.width, Height: fs.height, Pix: buf}
	fs.index++
	return f, nil
}

// Close waits for the underlying ffmpeg process and releases its pipe.
func (fs *FrameSequence) Close() error {
	if fs.closed {
		return nil
	}
	fs.closed = true
	_ = fs.stdout.Close()
	return fs.cmd.Wait()
}

// All drains the sequence into a slice, closing it afterward. Implements the
// "buffer once, fan three consumers out" strategy §9 allows as an
// alternative to decoding three times.
func (fs *FrameSequence) All() ([]*Frame, error) {
	defer fs.Close()
	var frames []*Frame
	for {
		f, err := fs.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// DecodeFrames opens srcPath and returns a lazy frame sequence. width/height
// must be known ahead of time (call Probe first); they determine how many
// bytes make up one BGR24 frame.
func (a *Adapter) DecodeFrames(ctx context.Context, srcPath string, width, height int) (*FrameSequence, error) {
	args := buildDecodeArgs(srcPath)
	cmd := exec.CommandContext(ctx, a.ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, reelerr.Wrap(reelerr.MediaFailure, "media.DecodeFrames", err)
	}
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return nil, reelerr.Wrap(reelerr.MediaFailure, "media.DecodeFrames", err)
	}
	return &FrameSequence{
		cmd:       cmd,
		stdout:    stdout,
		reader:    bufio.NewReaderSize(stdout, 1<<20),
		width:     width,
		height:    height,
		frameSize: width * height * 3,
	}, nil
}

// SSIM runs a structural-similarity comparison between two media files and
// returns one overall-SSIM score per aligned frame pair. Fails with
// SsimError (reelerr.MediaFailure) if the sequence is empty.
func (a *Adapter) SSIM(ctx context.Context, pathA, pathB string) ([]float64, error) {
	statsFile, err := os.CreateTemp("", "reeltrust-ssim-*.log")
	if err != nil {
		return nil, reelerr.Wrap(reelerr.MediaFailure, "media.SSIM", err)
	}
	statsPath := statsFile.Name()
	_ = statsFile.Close()
	defer os.Remove(statsPath)

	args := buildSSIMArgs(pathA, pathB, statsPath)
	if err := a.run(ctx, a.ffmpegPath, args); err != nil {
		return nil, reelerr.Wrap(reelerr.MediaFailure, "media.SSIM", err)
	}

	data, err := os.ReadFile(statsPath)
	if err != nil {
		return nil, reelerr.Wrap(reelerr.MediaFailure, "media.SSIM", err)
	}

	var scores []float64
	for _, line := range strings.Split(string(data), "\n") {
		idx := strings.Index(line, "All:")
		if idx < 0 {
			continue
		}
		field := strings.Fields(line[idx+len("All:"):])
		if len(field) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(field[0], 64)
		if err != nil {
			continue
		}
		scores = append(scores, v)
	}

	if len(scores) == 0 {
		return nil, reelerr.New(reelerr.MediaFailure, "media.SSIM", "no SSIM scores found in ffmpeg output")
	}
	return scores, nil
}

// ExtractClip extracts [start, start+duration) from srcPath into destPath.
// Start times < 0 are clamped to 0.
func (a *Adapter) ExtractClip(ctx context.Context, srcPath, destPath string, startSeconds, durationSeconds float64) error {
	args := buildExtractClipArgs(srcPath, destPath, startSeconds, durationSeconds)
	if err := a.run(ctx, a.ffmpegPath, args); err != nil {
		return reelerr.Wrap(reelerr.MediaFailure, "media.ExtractClip", err)
	}
	return nil
}

// SideBySideClip composes a labeled side-by-side comparison clip, scaling
// rightPath to match leftPath's dimensions.
func (a *Adapter) SideBySideClip(ctx context.Context, leftPath, rightPath, destPath string, startSeconds, durationSeconds float64, leftLabel, rightLabel string) error {
	args := buildSideBySideArgs(leftPath, rightPath, destPath, startSeconds, durationSeconds, leftLabel, rightLabel)
	if err := a.run(ctx, a.ffmpegPath, args); err != nil {
		return reelerr.Wrap(reelerr.MediaFailure, "media.SideBySideClip", err)
	}
	return nil
}

// AlignmentStripes produces the five-stripe vertical-stack review video
// (SPEC_FULL.md supplement, grounded on original_source/regions.py).
func (a *Adapter) AlignmentStripes(ctx context.Context, srcPath, destPath string, width, height int) error {
	args := buildAlignmentStripesArgs(srcPath, destPath, width, height, 3)
	if err := a.run(ctx, a.ffmpegPath, args); err != nil {
		return reelerr.Wrap(reelerr.MediaFailure, "media.AlignmentStripes", err)
	}
	return nil
}
