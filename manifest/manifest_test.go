package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aaronsteers/ReelTrust/internal/reelerr"
)

func sampleManifest() *Manifest {
	return &Manifest{
		Version:   "1.0",
		PackageID: PackageID("abcdef0123456789abcdef0123456789"),
		OriginalVideo: FileEntry{
			SHA256:     "abcdef0123456789abcdef0123456789",
			FrameCount: 300,
			FPS:        30,
		},
		Files: map[string]FileEntry{
			"digest_video.mp4": {SHA256: "11112222", Description: "recompressed reference digest"},
			"metadata.json":    {SHA256: "33334444"},
		},
		Fingerprints: &FingerprintManifest{
			Source:     "original_video",
			FrameCount: 300,
			Files: map[string]FingerprintFileEntry{
				"dhash.bin": {SizeBytes: 2400, ComputeTimeMS: 12.5},
			},
		},
		Regions: map[string]RegionManifest{
			"region_75": {Fraction: 0.75, FrameCount: 300, Files: map[string]FingerprintFileEntry{
				"dhash.bin": {SizeBytes: 2400, ComputeTimeMS: 9.1},
			}},
		},
	}
}

func TestPackageIDTruncatesToSixteenHexChars(t *testing.T) {
	got := PackageID("abcdef0123456789abcdef0123456789")
	if got != "abcdef0123456789" {
		t.Fatalf("PackageID = %q, want first 16 hex chars", got)
	}
}

func TestPackageIDShorterThanSixteenIsUnchanged(t *testing.T) {
	got := PackageID("abc123")
	if got != "abc123" {
		t.Fatalf("PackageID on short input = %q, want unchanged", got)
	}
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	m := sampleManifest()
	once, err := Canonicalize(m)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}

	var reloaded Manifest
	if err := json.Unmarshal(once, &reloaded); err != nil {
		t.Fatalf("reload: %v", err)
	}
	twice, err := Canonicalize(&reloaded)
	if err != nil {
		t.Fatalf("Canonicalize (second pass): %v", err)
	}
	if string(once) != string(twice) {
		t.Fatalf("canonicalization not idempotent:\n%s\nvs\n%s", once, twice)
	}
}

func TestHashStableAcrossFieldOrder(t *testing.T) {
	m1 := sampleManifest()
	m2 := sampleManifest()
	// Map iteration order varies; Files/Regions are maps, so this exercises
	// that canonicalization's lexicographic key sort makes the hash order-
	// independent regardless of how Go happens to iterate when marshaling.
	h1, err := Hash(m1)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, err := Hash(m2)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("identical manifests hashed differently: %s vs %s", h1, h2)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := sampleManifest()
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	if err := Save(m, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.PackageID != m.PackageID {
		t.Fatalf("loaded package_id = %q, want %q", loaded.PackageID, m.PackageID)
	}
	if len(loaded.Regions) != len(m.Regions) {
		t.Fatalf("loaded regions count = %d, want %d", len(loaded.Regions), len(m.Regions))
	}
}

func TestLoadMissingFileReturnsInputNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatalf("expected error loading missing manifest")
	}
	if !reelerr.Is(err, reelerr.InputNotFound) {
		t.Fatalf("expected InputNotFound, got %v", err)
	}
}

func TestVerifyFileHashesDetectsTamperedArtifact(t *testing.T) {
	dir := t.TempDir()
	m := &Manifest{
		Files: map[string]FileEntry{
			"digest_video.mp4": {SHA256: "0000000000000000000000000000000000000000000000000000000000000000"},
		},
	}
	path := filepath.Join(dir, "digest_video.mp4")
	if err := os.WriteFile(path, []byte("some video bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if err := VerifyFileHashes(dir, m); err == nil {
		t.Fatalf("expected hash mismatch error")
	}
}
