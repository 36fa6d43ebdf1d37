package fingerprint

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/aaronsteers/ReelTrust/internal/pool"
	"github.com/aaronsteers/ReelTrust/media"
)

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available, skipping engine test")
	}
}

func generateFixture(t *testing.T, dir string) string {
	t.Helper()
	src := filepath.Join(dir, "source.mp4")
	cmd := exec.Command("ffmpeg",
		"-f", "lavfi", "-i", "testsrc=size=32x32:rate=10:duration=1",
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		src,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("generate fixture: %v: %s", err, out)
	}
	return src
}

func TestEngineComputeProducesEqualLengthSequences(t *testing.T) {
	requireFFmpeg(t)
	dir := t.TempDir()
	src := generateFixture(t, dir)

	adapter := media.NewAdapter("ffmpeg", "ffprobe", nil)
	probe, err := adapter.Probe(context.Background(), src)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	seq, err := adapter.DecodeFrames(context.Background(), src, probe.Width, probe.Height)
	if err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}

	workers := pool.NewWorkerPool(2)
	workers.Start()
	defer workers.Stop()

	engine := NewEngine(8, workers)
	fp, err := engine.Compute(seq)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(fp.DHash) == 0 {
		t.Fatalf("expected at least one frame's worth of fingerprints")
	}
	if len(fp.DHash) != len(fp.PHash) || len(fp.DHash) != len(fp.Stats) {
		t.Fatalf("fingerprint sequence lengths disagree: dhash=%d phash=%d stats=%d",
			len(fp.DHash), len(fp.PHash), len(fp.Stats))
	}
}

func TestEngineComputeWithNilWorkerPoolRunsInline(t *testing.T) {
	requireFFmpeg(t)
	dir := t.TempDir()
	src := generateFixture(t, dir)

	adapter := media.NewAdapter("ffmpeg", "ffprobe", nil)
	probe, err := adapter.Probe(context.Background(), src)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	seq, err := adapter.DecodeFrames(context.Background(), src, probe.Width, probe.Height)
	if err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}

	engine := NewEngine(0, nil)
	fp, err := engine.Compute(seq)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(fp.DHash) == 0 {
		t.Fatalf("expected at least one frame's worth of fingerprints")
	}
}
