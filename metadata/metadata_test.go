package metadata

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	m := Metadata{
		Version:   "1.0",
		CreatedAt: "2026-01-01T00:00:00Z",
		SourceFile: SourceFile{Name: "clip.mp4", SizeBytes: 1024},
		VideoInfo:  VideoInfo{Duration: 12.5, Format: "mov,mp4,m4a,3gp,3g2,mj2", Streams: 2},
		UserIdentity: "alice",
		GPSLocation:  &GPSLocation{Latitude: 37.7749, Longitude: -122.4194},
	}
	path := filepath.Join(t.TempDir(), "metadata.json")

	if err := Save(m, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.SourceFile.Name != m.SourceFile.Name {
		t.Fatalf("loaded source file name = %q, want %q", loaded.SourceFile.Name, m.SourceFile.Name)
	}
	if loaded.GPSLocation == nil || loaded.GPSLocation.Latitude != m.GPSLocation.Latitude {
		t.Fatalf("GPS location did not round-trip: %+v", loaded.GPSLocation)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error loading missing metadata file")
	}
}

func TestBuildPopulatesFromFFprobe(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available, skipping metadata build test")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not available, skipping metadata build test")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "source.mp4")
	cmd := exec.Command("ffmpeg",
		"-f", "lavfi", "-i", "testsrc=size=32x32:rate=10:duration=1",
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		src,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("generate fixture: %v: %s", err, out)
	}

	m, err := Build(context.Background(), src, "ffprobe", Options{UserIdentity: "bob"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.SourceFile.Name != "source.mp4" {
		t.Fatalf("SourceFile.Name = %q, want source.mp4", m.SourceFile.Name)
	}
	if m.VideoInfo.Duration <= 0 {
		t.Fatalf("expected positive duration, got %v", m.VideoInfo.Duration)
	}
	if m.UserIdentity != "bob" {
		t.Fatalf("UserIdentity = %q, want bob", m.UserIdentity)
	}
}
