// Package manifest implements the Manifest/Signature binding: a
// content-addressed inventory of package artifacts, canonicalized and
// hashed so tampering with any one file is detectable (spec.md §3, §4.5,
// §4.6, §6).
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aaronsteers/ReelTrust/internal/hashutil"
	"github.com/aaronsteers/ReelTrust/internal/reelerr"
)

// FileEntry is one manifest artifact record: its content hash plus whatever
// descriptive fields that artifact carries.
type FileEntry struct {
	SHA256          string  `json:"sha256"`
	Description     string  `json:"description,omitempty"`
	FrameCount      int     `json:"frame_count,omitempty"`
	FPS             float64 `json:"fps,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// FingerprintFileEntry records size and compute time for one fingerprint
// artifact (dhash.bin, phash.bin, frame_stats.json).
type FingerprintFileEntry struct {
	SizeBytes     int64   `json:"size_bytes"`
	ComputeTimeMS float64 `json:"compute_time_ms"`
}

// FingerprintManifest is the fingerprint sub-manifest spec.md §3 names:
// "naming each fingerprint file with its byte size and compute time."
type FingerprintManifest struct {
	Source     string                          `json:"source"`
	FrameCount int                             `json:"frame_count"`
	Files      map[string]FingerprintFileEntry `json:"files"`
}

// RegionManifest is one concentric-region fingerprint sub-manifest
// (SPEC_FULL.md supplement, grounded on original_source/regions.py's
// create_region_fingerprints): the same shape as FingerprintManifest, plus
// the region's size fraction.
type RegionManifest struct {
	Fraction   float64                          `json:"fraction"`
	FrameCount int                              `json:"frame_count"`
	Files      map[string]FingerprintFileEntry  `json:"files"`
}

// Manifest is the top-level signed inventory: original_video.sha256, a
// package_id, a map of in-package-relative-path -> FileEntry, and an
// optional fingerprint sub-manifest.
type Manifest struct {
	Version       string                    `json:"version"`
	PackageID     string                    `json:"package_id"`
	OriginalVideo FileEntry                 `json:"original_video"`
	Files         map[string]FileEntry      `json:"files"`
	Fingerprints  *FingerprintManifest      `json:"fingerprints,omitempty"`
	Regions       map[string]RegionManifest `json:"regions,omitempty"`
}

// PackageID derives the package_id from the original video's SHA-256: its
// first 16 hex characters (spec.md §3).
func PackageID(originalSHA256 string) string {
	if len(originalSHA256) < 16 {
		return originalSHA256
	}
	return originalSHA256[:16]
}

// Canonicalize renders m as UTF-8 JSON with keys sorted lexicographically at
// every level and no whitespace between tokens (spec.md §6). It round-trips
// m through map[string]interface{}, relying on encoding/json's guarantee
// that map keys are marshaled in sorted order (recursively, since nested
// objects become maps too) — the standard canonical-JSON trick, and
// idempotent by construction: canonicalizing already-canonical bytes
// round-trips to the same bytes.
func Canonicalize(m *Manifest) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("manifest.Canonicalize: marshal: %w", err)
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("manifest.Canonicalize: unmarshal: %w", err)
	}

	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("manifest.Canonicalize: remarshal: %w", err)
	}
	return canonical, nil
}

// Hash returns the hex SHA-256 digest of m's canonical form.
func Hash(m *Manifest) (string, error) {
	canonical, err := Canonicalize(m)
	if err != nil {
		return "", err
	}
	return hashutil.HashBytes(canonical), nil
}

// Save writes m to path with 2-space indentation for human readability —
// distinct from, and never used for, the canonical hashing form (spec.md
// §6: "manifest canonical form ... at hash time only").
func Save(m *Manifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest.Save: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads and parses a manifest.json file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, reelerr.Wrap(reelerr.InputNotFound, "manifest.Load", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, reelerr.Wrap(reelerr.PackageMalformed, "manifest.Load", err)
	}
	return &m, nil
}

// VerifyFileHashes re-hashes every artifact named in m.Files against the
// bytes on disk under packageDir, per §9's must-fix design note ("the
// manifest signs file hashes, not files"). Returns the first mismatch found,
// wrapping the file name.
func VerifyFileHashes(packageDir string, m *Manifest) error {
	for name, entry := range m.Files {
		path := filepath.Join(packageDir, name)
		actual, err := hashutil.HashFile(path)
		if err != nil {
			return reelerr.Wrap(reelerr.InputNotFound, "manifest.VerifyFileHashes", fmt.Errorf("%s: %w", name, err))
		}
		if actual != entry.SHA256 {
			return reelerr.New(reelerr.PackageMalformed, "manifest.VerifyFileHashes",
				fmt.Sprintf("%s: sha256 mismatch: manifest=%s on-disk=%s", name, entry.SHA256, actual))
		}
	}
	return nil
}
