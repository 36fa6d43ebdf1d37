package verifier

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aaronsteers/ReelTrust/compare"
	"github.com/aaronsteers/ReelTrust/fingerprint"
	"github.com/aaronsteers/ReelTrust/internal/config"
	"github.com/aaronsteers/ReelTrust/media"
)

func TestVerifyReportsMissingPackageStructureWithoutTouchingFFmpeg(t *testing.T) {
	cfg := config.Defaults()
	adapter := media.NewAdapter(cfg.FFmpegPath, cfg.FFprobePath, nil)
	engine := fingerprint.NewEngine(cfg.HashSize, nil)
	v, err := New(cfg, adapter, engine, nil, nil, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := v.Verify(context.Background(), "does-not-matter.mp4", t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Checks.PackageStructure {
		t.Fatalf("expected PackageStructure to be false for an empty package directory")
	}
	if result.IsValid {
		t.Fatalf("expected IsValid to be false when required package files are missing")
	}
	if len(result.Errors) == 0 {
		t.Fatalf("expected at least one error naming the missing package file(s)")
	}
}

func TestLoadStoredFingerprintsMissingDirErrors(t *testing.T) {
	if _, _, _, err := loadStoredFingerprints(filepath.Join(t.TempDir(), "no-such-package")); err == nil {
		t.Fatalf("expected error loading fingerprints from a nonexistent package directory")
	}
}

func TestFpsOrOneFallsBackForNonPositiveInput(t *testing.T) {
	if got := fpsOrOne(0); got != 1 {
		t.Fatalf("fpsOrOne(0) = %v, want 1", got)
	}
	if got := fpsOrOne(-5); got != 1 {
		t.Fatalf("fpsOrOne(-5) = %v, want 1", got)
	}
	if got := fpsOrOne(29.97); got != 29.97 {
		t.Fatalf("fpsOrOne(29.97) = %v, want 29.97 unchanged", got)
	}
}

func TestExtractEvidenceIgnoresWorstWindowsFromPassingVerdicts(t *testing.T) {
	cfg := config.Defaults()
	adapter := media.NewAdapter(cfg.FFmpegPath, cfg.FFprobePath, nil)
	engine := fingerprint.NewEngine(cfg.HashSize, nil)
	v, err := New(cfg, adapter, engine, nil, nil, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	passingWindows := []compare.WindowEvidence{{StartFrame: 0, EndFrame: 10, Aggregate: 0.1}}
	passingStatsWindows := []compare.StatsWindowEvidence{{StartFrame: 0, EndFrame: 10, Correlation: 0.99}}
	result := &Result{
		Details: Details{
			SSIM:  &compare.Verdict{IsValid: true, WorstWindows: passingWindows},
			DHash: &compare.Verdict{IsValid: true, WorstWindows: passingWindows},
			PHash: &compare.Verdict{IsValid: true, WorstWindows: passingWindows},
			Stats: &compare.StatsVerdict{IsValid: true, WorstWindows: passingStatsWindows},
		},
	}

	// outDir is never created; if extractEvidence tried to extract clips it
	// would fail trying to invoke ffmpeg against a nonexistent candidate,
	// surfacing as a result error instead of silently returning early.
	v.extractEvidence(context.Background(), "does-not-matter.mp4", "also-does-not-matter.mp4", filepath.Join(t.TempDir(), "never-created"), 30, result)

	if len(result.Details.AuditClips) != 0 {
		t.Fatalf("expected no audit clips when every verdict passed, got %d", len(result.Details.AuditClips))
	}
	if len(result.Errors) != 0 {
		t.Fatalf("expected no errors when every verdict passed (extraction should never be attempted), got %v", result.Errors)
	}
}

func TestExtractEvidenceCollectsWorstWindowsFromFailingVerdicts(t *testing.T) {
	cfg := config.Defaults()
	adapter := media.NewAdapter(cfg.FFmpegPath, cfg.FFprobePath, nil)
	engine := fingerprint.NewEngine(cfg.HashSize, nil)
	v, err := New(cfg, adapter, engine, nil, nil, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := &Result{
		Details: Details{
			SSIM: &compare.Verdict{IsValid: false, WorstWindows: []compare.WindowEvidence{{StartFrame: 0, EndFrame: 10, Aggregate: 0.5}}},
		},
	}

	// A failing verdict's windows should reach extraction (and therefore an
	// ffmpeg invocation, which fails against a nonexistent candidate file
	// and surfaces as a result error) rather than being silently dropped.
	v.extractEvidence(context.Background(), "does-not-matter.mp4", "also-does-not-matter.mp4", filepath.Join(t.TempDir(), "audit"), 30, result)

	if len(result.Errors) == 0 {
		t.Fatalf("expected an extraction error against a nonexistent candidate, got none")
	}
}

func TestEnableRegionCrossCheckSetsFlag(t *testing.T) {
	cfg := config.Defaults()
	adapter := media.NewAdapter(cfg.FFmpegPath, cfg.FFprobePath, nil)
	engine := fingerprint.NewEngine(cfg.HashSize, nil)
	v, err := New(cfg, adapter, engine, nil, nil, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if v.checkRegions {
		t.Fatalf("expected checkRegions to default to false")
	}
	v.EnableRegionCrossCheck()
	if !v.checkRegions {
		t.Fatalf("expected EnableRegionCrossCheck to set checkRegions")
	}
}
