package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available, skipping media adapter test")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not available, skipping media adapter test")
	}
}

func generateFixture(t *testing.T, width, height, durationSeconds int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.mp4")
	cmd := exec.Command("ffmpeg",
		"-f", "lavfi", "-i", fmt.Sprintf("testsrc=size=%dx%d:rate=10:duration=%d", width, height, durationSeconds),
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		path,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("generate fixture: %v: %s", err, out)
	}
	return path
}

func newTestAdapter() *Adapter {
	return NewAdapter("ffmpeg", "ffprobe", logrus.StandardLogger())
}

func TestProbeReportsDimensionsAndFrameCount(t *testing.T) {
	requireFFmpeg(t)
	src := generateFixture(t, 64, 48, 2)

	a := newTestAdapter()
	result, err := a.Probe(context.Background(), src)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if result.Width != 64 || result.Height != 48 {
		t.Fatalf("Probe dimensions = %dx%d, want 64x48", result.Width, result.Height)
	}
	if result.FrameCount <= 0 {
		t.Fatalf("Probe FrameCount = %d, want > 0", result.FrameCount)
	}
	if result.FPS <= 0 {
		t.Fatalf("Probe FPS = %v, want > 0", result.FPS)
	}
}

func TestRecompressProducesDecodablePlayableOutput(t *testing.T) {
	requireFFmpeg(t)
	src := generateFixture(t, 64, 48, 1)
	dest := filepath.Join(t.TempDir(), "digest.mp4")

	a := newTestAdapter()
	if err := a.Recompress(context.Background(), src, dest, 32, 28, "veryfast"); err != nil {
		t.Fatalf("Recompress: %v", err)
	}
	probe, err := a.Probe(context.Background(), dest)
	if err != nil {
		t.Fatalf("Probe recompressed output: %v", err)
	}
	if probe.Width != 32 {
		t.Fatalf("recompressed width = %d, want 32", probe.Width)
	}
}

func TestDecodeFramesYieldsExpectedFrameCount(t *testing.T) {
	requireFFmpeg(t)
	src := generateFixture(t, 32, 32, 1)

	a := newTestAdapter()
	probe, err := a.Probe(context.Background(), src)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}

	seq, err := a.DecodeFrames(context.Background(), src, probe.Width, probe.Height)
	if err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}
	frames, err := seq.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(frames) == 0 {
		t.Fatalf("expected at least one decoded frame")
	}
	if frames[0].Width != probe.Width || frames[0].Height != probe.Height {
		t.Fatalf("decoded frame dimensions = %dx%d, want %dx%d", frames[0].Width, frames[0].Height, probe.Width, probe.Height)
	}
}

func TestDecodeFramesNextReturnsEOFAtEnd(t *testing.T) {
	requireFFmpeg(t)
	src := generateFixture(t, 32, 32, 1)

	a := newTestAdapter()
	probe, err := a.Probe(context.Background(), src)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	seq, err := a.DecodeFrames(context.Background(), src, probe.Width, probe.Height)
	if err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}
	defer seq.Close()

	for {
		if _, err := seq.Next(); err != nil {
			if err != io.EOF {
				t.Fatalf("Next: unexpected error %v", err)
			}
			break
		}
	}
}

func TestSSIMOfIdenticalFileIsNearOne(t *testing.T) {
	requireFFmpeg(t)
	src := generateFixture(t, 32, 32, 1)

	a := newTestAdapter()
	scores, err := a.SSIM(context.Background(), src, src)
	if err != nil {
		t.Fatalf("SSIM: %v", err)
	}
	if len(scores) == 0 {
		t.Fatalf("expected at least one SSIM score")
	}
	for _, s := range scores {
		if s < 0.98 {
			t.Fatalf("SSIM of a file against itself = %v, want ~1.0", s)
		}
	}
}

func TestExtractClipProducesShorterOutput(t *testing.T) {
	requireFFmpeg(t)
	src := generateFixture(t, 32, 32, 3)
	dest := filepath.Join(t.TempDir(), "clip.mp4")

	a := newTestAdapter()
	if err := a.ExtractClip(context.Background(), src, dest, 0, 1); err != nil {
		t.Fatalf("ExtractClip: %v", err)
	}
	probe, err := a.Probe(context.Background(), dest)
	if err != nil {
		t.Fatalf("Probe clip: %v", err)
	}
	if probe.DurationSeconds > 2 {
		t.Fatalf("clip duration = %v, want roughly 1s", probe.DurationSeconds)
	}
}

func TestCropRegionProducesSmallerCenteredFrame(t *testing.T) {
	requireFFmpeg(t)
	src := generateFixture(t, 64, 64, 1)
	dest := filepath.Join(t.TempDir(), "region.mp4")

	a := newTestAdapter()
	if err := a.CropRegion(context.Background(), src, dest, 0.5, 28); err != nil {
		t.Fatalf("CropRegion: %v", err)
	}
	probe, err := a.Probe(context.Background(), dest)
	if err != nil {
		t.Fatalf("Probe cropped region: %v", err)
	}
	if probe.Width != 32 || probe.Height != 32 {
		t.Fatalf("cropped region dimensions = %dx%d, want 32x32", probe.Width, probe.Height)
	}
}

func TestSideBySideClipProducesDoubleWidthOutput(t *testing.T) {
	requireFFmpeg(t)
	left := generateFixture(t, 32, 32, 1)
	right := generateFixture(t, 32, 32, 1)
	dest := filepath.Join(t.TempDir(), "sbs.mp4")

	a := newTestAdapter()
	if err := a.SideBySideClip(context.Background(), left, right, dest, 0, 1, "original", "candidate"); err != nil {
		t.Fatalf("SideBySideClip: %v", err)
	}
	probe, err := a.Probe(context.Background(), dest)
	if err != nil {
		t.Fatalf("Probe side-by-side clip: %v", err)
	}
	if probe.Width != 64 {
		t.Fatalf("side-by-side width = %d, want 64 (2x32)", probe.Width)
	}
}

func TestAlignmentStripesProducesDownsampledReview(t *testing.T) {
	requireFFmpeg(t)
	src := generateFixture(t, 64, 120, 1)
	dest := filepath.Join(t.TempDir(), "stripes.mp4")

	a := newTestAdapter()
	if err := a.AlignmentStripes(context.Background(), src, dest, 64, 120); err != nil {
		t.Fatalf("AlignmentStripes: %v", err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("expected alignment stripes output to exist: %v", err)
	}
}

func TestProbeMissingFileErrors(t *testing.T) {
	requireFFmpeg(t)
	a := newTestAdapter()
	if _, err := a.Probe(context.Background(), filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Fatalf("expected error probing a missing file")
	}
}
