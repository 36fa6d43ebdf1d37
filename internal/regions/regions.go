// Package regions computes concentric-region fingerprints: the same
// dHash/pHash/frame-statistics triple the Fingerprint Engine produces for
// the full frame, recomputed over a centered crop of the source at one or
// more size fractions. A pure crop/pan — reframing without altering visual
// content — can leave full-frame perceptual hashes largely unchanged while
// still being a meaningful edit; a region fingerprint pinned to, say, the
// center 50% of the frame is more sensitive to exactly that tamper.
//
// SPEC_FULL.md supplement, grounded on
// original_source/src/reeltrust/regions.py's compute_region_fingerprints and
// create_region_fingerprints.
package regions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aaronsteers/ReelTrust/fingerprint"
	"github.com/aaronsteers/ReelTrust/internal/reelerr"
	"github.com/aaronsteers/ReelTrust/internal/scratch"
	"github.com/aaronsteers/ReelTrust/manifest"
	"github.com/aaronsteers/ReelTrust/media"
)

// DefaultFractions is the region size ladder original_source/regions.py
// defaults to when none is specified: a 75% center box and a 50% center box.
var DefaultFractions = []float64{0.75, 0.50}

// regionQualityCRF is the CRF used for the temporary cropped video —
// original_source/regions.py's CompressionQuality.HIGH, used for accurate
// fingerprinting rather than the lower-quality digest CRF.
const regionQualityCRF = 18

// Builder computes and writes region fingerprint sub-manifests.
type Builder struct {
	adapter *media.Adapter
	engine  *fingerprint.Engine
	store   *scratch.Store
}

// NewBuilder constructs a Builder. A nil store falls back to a source-path-
// adjacent scratch file, which the Builder removes after use; normally
// callers pass the same *scratch.Store the Signer uses.
func NewBuilder(adapter *media.Adapter, engine *fingerprint.Engine, store *scratch.Store) *Builder {
	return &Builder{adapter: adapter, engine: engine, store: store}
}

// Build computes region fingerprints for sourcePath at each fraction in
// fractions, writing fingerprints/regions/region_NN/{dhash.bin,phash.bin,
// frame_stats.json} under packageDir, and returns the region sub-manifest
// keyed by region name (e.g. "region_75").
func (b *Builder) Build(ctx context.Context, sourcePath, packageDir string, fractions []float64) (map[string]manifest.RegionManifest, error) {
	if len(fractions) == 0 {
		fractions = DefaultFractions
	}

	regionsDir := filepath.Join(packageDir, "fingerprints", "regions")
	if err := os.MkdirAll(regionsDir, 0o755); err != nil {
		return nil, reelerr.Wrap(reelerr.MediaFailure, "regions.Build", err)
	}

	results := make(map[string]manifest.RegionManifest, len(fractions))
	for _, fraction := range fractions {
		name := regionName(fraction)
		rm, err := b.buildOne(ctx, sourcePath, regionsDir, name, fraction)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", name, err)
		}
		results[name] = rm
	}
	return results, nil
}

func (b *Builder) buildOne(ctx context.Context, sourcePath, regionsDir, name string, fraction float64) (manifest.RegionManifest, error) {
	croppedPath := sourcePath + ".reeltrust-region-" + name + ".mp4"
	if b.store != nil {
		croppedPath = b.store.Reserve("region-"+name, ".mp4")
	}
	defer os.Remove(croppedPath)

	if err := b.adapter.CropRegion(ctx, sourcePath, croppedPath, fraction, regionQualityCRF); err != nil {
		return manifest.RegionManifest{}, err
	}

	probe, err := b.adapter.Probe(ctx, croppedPath)
	if err != nil {
		return manifest.RegionManifest{}, err
	}
	seq, err := b.adapter.DecodeFrames(ctx, croppedPath, probe.Width, probe.Height)
	if err != nil {
		return manifest.RegionManifest{}, err
	}
	fp, err := b.engine.Compute(seq)
	if err != nil {
		return manifest.RegionManifest{}, err
	}

	dir := filepath.Join(regionsDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return manifest.RegionManifest{}, reelerr.Wrap(reelerr.MediaFailure, "regions.buildOne", err)
	}

	files := make(map[string]manifest.FingerprintFileEntry, 3)

	start := time.Now()
	dhashBytes := fingerprint.EncodeHashes(fp.DHash)
	if err := writeFileAtomic(filepath.Join(dir, "dhash.bin"), dhashBytes); err != nil {
		return manifest.RegionManifest{}, reelerr.Wrap(reelerr.MediaFailure, "regions.buildOne", err)
	}
	files["dhash.bin"] = manifest.FingerprintFileEntry{SizeBytes: int64(len(dhashBytes)), ComputeTimeMS: msSince(start)}

	start = time.Now()
	phashBytes := fingerprint.EncodeHashes(fp.PHash)
	if err := writeFileAtomic(filepath.Join(dir, "phash.bin"), phashBytes); err != nil {
		return manifest.RegionManifest{}, reelerr.Wrap(reelerr.MediaFailure, "regions.buildOne", err)
	}
	files["phash.bin"] = manifest.FingerprintFileEntry{SizeBytes: int64(len(phashBytes)), ComputeTimeMS: msSince(start)}

	start = time.Now()
	statsBytes, err := json.Marshal(fp.Stats)
	if err != nil {
		return manifest.RegionManifest{}, reelerr.Wrap(reelerr.MediaFailure, "regions.buildOne", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, "frame_stats.json"), statsBytes); err != nil {
		return manifest.RegionManifest{}, reelerr.Wrap(reelerr.MediaFailure, "regions.buildOne", err)
	}
	files["frame_stats.json"] = manifest.FingerprintFileEntry{SizeBytes: int64(len(statsBytes)), ComputeTimeMS: msSince(start)}

	return manifest.RegionManifest{
		Fraction:   fraction,
		FrameCount: len(fp.DHash),
		Files:      files,
	}, nil
}

// CrossCheck recomputes region fingerprints for candidatePath, one per
// region named in stored, and returns them keyed by region name. It does
// not compare them against the stored region data; the caller does that
// with LoadStored and the compare package.
// Verifier step 5b (SPEC_FULL.md supplement): an optional extra
// cross-check, skipped entirely when the package carries no region data.
func (b *Builder) CrossCheck(ctx context.Context, candidatePath, packageDir string, stored map[string]manifest.RegionManifest) (map[string]*fingerprint.Fingerprints, error) {
	results := make(map[string]*fingerprint.Fingerprints, len(stored))
	for name, rm := range stored {
		croppedPath := candidatePath + ".reeltrust-region-" + name + ".mp4"
		if b.store != nil {
			croppedPath = b.store.Reserve("region-verify-"+name, ".mp4")
		}

		if err := b.adapter.CropRegion(ctx, candidatePath, croppedPath, rm.Fraction, regionQualityCRF); err != nil {
			os.Remove(croppedPath)
			return nil, fmt.Errorf("region %s: %w", name, err)
		}
		probe, err := b.adapter.Probe(ctx, croppedPath)
		if err != nil {
			os.Remove(croppedPath)
			return nil, fmt.Errorf("region %s: %w", name, err)
		}
		seq, err := b.adapter.DecodeFrames(ctx, croppedPath, probe.Width, probe.Height)
		if err != nil {
			os.Remove(croppedPath)
			return nil, fmt.Errorf("region %s: %w", name, err)
		}
		fp, err := b.engine.Compute(seq)
		os.Remove(croppedPath)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", name, err)
		}
		results[name] = fp
	}
	return results, nil
}

// LoadStored reads a region's dhash.bin/phash.bin/frame_stats.json back from
// packageDir for comparison against a CrossCheck result.
func LoadStored(packageDir, name string) ([]uint64, []uint64, []fingerprint.FrameStats, error) {
	dir := filepath.Join(packageDir, "fingerprints", "regions", name)

	dhashBytes, err := os.ReadFile(filepath.Join(dir, "dhash.bin"))
	if err != nil {
		return nil, nil, nil, reelerr.Wrap(reelerr.InputNotFound, "regions.LoadStored", err)
	}
	dhash, err := fingerprint.DecodeHashes(dhashBytes)
	if err != nil {
		return nil, nil, nil, reelerr.Wrap(reelerr.PackageMalformed, "regions.LoadStored", err)
	}

	phashBytes, err := os.ReadFile(filepath.Join(dir, "phash.bin"))
	if err != nil {
		return nil, nil, nil, reelerr.Wrap(reelerr.InputNotFound, "regions.LoadStored", err)
	}
	phash, err := fingerprint.DecodeHashes(phashBytes)
	if err != nil {
		return nil, nil, nil, reelerr.Wrap(reelerr.PackageMalformed, "regions.LoadStored", err)
	}

	statsBytes, err := os.ReadFile(filepath.Join(dir, "frame_stats.json"))
	if err != nil {
		return nil, nil, nil, reelerr.Wrap(reelerr.InputNotFound, "regions.LoadStored", err)
	}
	var stats []fingerprint.FrameStats
	if err := json.Unmarshal(statsBytes, &stats); err != nil {
		return nil, nil, nil, reelerr.Wrap(reelerr.PackageMalformed, "regions.LoadStored", err)
	}

	return dhash, phash, stats, nil
}

func regionName(fraction float64) string {
	return fmt.Sprintf("region_%d", int(fraction*100))
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// writeFileAtomic writes data to a temp file beside path and renames it into
// place, matching signer.writeFileAtomic's atomic-write contract.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".reeltrust-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s -> %s: %w", tmpName, path, err)
	}
	return nil
}
