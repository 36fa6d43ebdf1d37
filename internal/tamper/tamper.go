// Package tamper generates synthetic tampered copies of a video for
// exercising the comparators in compare and the Verifier end to end. A real
// tamper-detection system needs known-bad fixtures as much as it needs
// known-good ones; this package produces them on demand instead of checking
// large binary fixtures into the repository.
//
// Adapted from internal/services' video/audio converters: same
// randomized-ffmpeg-filter-parameter shape (their anti-fingerprinting
// "levels" become tamper Severity here), but seeded explicitly for
// reproducible tests rather than nonce/timestamp-seeded for uniqueness, and
// the injected filters are logged and labeled rather than disguised.
package tamper

import (
	"bytes"
	"context"
	"fmt"
	mathrand "math/rand"
	"os/exec"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/aaronsteers/ReelTrust/internal/reelerr"
)

// Severity scales how far a tamper injection drifts the media from the
// original. Mirrors the teacher converters' "none/basic/moderate/paranoid"
// level ladder, renamed to reflect intent (deliberate test tampering, not
// evasion).
type Severity int

const (
	// Subtle perturbations should usually still pass the Verifier's
	// thresholds (spec.md §6): useful for testing the threshold boundary
	// itself, not just the pass/fail branches.
	Subtle Severity = iota
	// Moderate perturbations should fail the frame-statistics/SSIM checks
	// but may still pass a coarse dHash check.
	Moderate
	// Severe perturbations should fail every comparator.
	Severe
)

// Kind names which aspect of the video a Spec perturbs.
type Kind int

const (
	// KindNoise adds visual noise — exercises dHash/pHash/SSIM together.
	KindNoise Kind = iota
	// KindColorShift adjusts brightness/contrast/saturation — exercises
	// the frame-statistics comparator's correlation/MAD thresholds.
	KindColorShift
	// KindCrop shifts framing by a few pixels — exercises dHash/pHash,
	// which are sensitive to spatial structure.
	KindCrop
	// KindRecompress re-encodes at a much lower quality — exercises SSIM
	// and the frame-statistics comparator without altering framing.
	KindRecompress
	// KindAudioPitchShift alters the audio track's pitch — exercises the
	// acoustic fingerprint comparison, not any of the video comparators.
	KindAudioPitchShift
)

// Spec describes one tamper injection. Seed makes the injection
// reproducible: the same Spec run twice against the same source produces
// byte-identical output.
type Spec struct {
	Kind     Kind
	Severity Severity
	Seed     int64
}

// Stats tracks injection outcomes, mirroring the teacher converters'
// TotalConversions/FailedConversions pair.
type Stats struct {
	TotalInjections  int64
	FailedInjections int64
}

// Injector applies labeled tamper injections with ffmpeg. It does not reuse
// media.Adapter directly: Adapter's methods are the fixed vocabulary spec.md
// §4.1 allows Sign/Verify to use, and tamper fixtures call for an open set of
// one-off filter graphs that has no place in that production vocabulary.
type Injector struct {
	ffmpegPath string
	log        *logrus.Logger

	mu    sync.Mutex
	stats Stats
}

// New constructs an Injector. A nil logger falls back to logrus's standard
// logger; an empty ffmpegPath falls back to "ffmpeg" on PATH.
func New(ffmpegPath string, log *logrus.Logger) *Injector {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Injector{ffmpegPath: ffmpegPath, log: log}
}

// Apply renders spec against srcPath, writing destPath.
func (inj *Injector) Apply(ctx context.Context, srcPath, destPath string, spec Spec) error {
	rng := mathrand.New(mathrand.NewSource(spec.Seed))

	args, err := inj.buildArgs(srcPath, destPath, spec, rng)
	if err != nil {
		inj.recordFailure()
		return err
	}

	inj.log.WithFields(logrus.Fields{
		"kind":     kindName(spec.Kind),
		"severity": severityName(spec.Severity),
		"seed":     spec.Seed,
	}).Debug("tamper: injecting")

	cmd := exec.CommandContext(ctx, inj.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		inj.recordFailure()
		return reelerr.Wrap(reelerr.MediaFailure, "tamper.Apply", fmt.Errorf("ffmpeg: %w: %s", err, stderr.String()))
	}

	inj.recordSuccess()
	return nil
}

func (inj *Injector) buildArgs(srcPath, destPath string, spec Spec, rng *mathrand.Rand) ([]string, error) {
	switch spec.Kind {
	case KindNoise:
		return buildNoiseArgs(srcPath, destPath, spec.Severity, rng), nil
	case KindColorShift:
		return buildColorShiftArgs(srcPath, destPath, spec.Severity, rng), nil
	case KindCrop:
		return buildCropArgs(srcPath, destPath, spec.Severity, rng), nil
	case KindRecompress:
		return buildRecompressTamperArgs(srcPath, destPath, spec.Severity), nil
	case KindAudioPitchShift:
		return buildAudioPitchShiftArgs(srcPath, destPath, spec.Severity, rng), nil
	default:
		return nil, reelerr.New(reelerr.InternalInvariant, "tamper.buildArgs", fmt.Sprintf("unknown tamper kind %d", spec.Kind))
	}
}

// buildNoiseArgs scales the noise filter's "alls" strength with severity.
func buildNoiseArgs(srcPath, destPath string, sev Severity, rng *mathrand.Rand) []string {
	var strength int
	switch sev {
	case Subtle:
		strength = 2 + rng.Intn(3) // 2-4
	case Moderate:
		strength = 8 + rng.Intn(5) // 8-12
	default:
		strength = 20 + rng.Intn(11) // 20-30
	}
	vf := fmt.Sprintf("noise=alls=%d:allf=t+u", strength)
	return []string{
		"-y", "-i", srcPath,
		"-vf", vf,
		"-c:v", "libx264", "-crf", "18", "-preset", "fast",
		"-c:a", "copy",
		destPath,
	}
}

// buildColorShiftArgs pushes brightness/contrast/saturation away from
// identity. Scaled so Subtle stays within frame-statistics tolerances
// (compare.CompareStats's default 0.90 correlation / 0.8 MAD thresholds) and
// Severe does not.
func buildColorShiftArgs(srcPath, destPath string, sev Severity, rng *mathrand.Rand) []string {
	var brightness, contrastDelta, saturationDelta float64
	switch sev {
	case Subtle:
		brightness = 0.01 + rng.Float64()*0.01
		contrastDelta = 0.01 + rng.Float64()*0.01
		saturationDelta = 0.01 + rng.Float64()*0.01
	case Moderate:
		brightness = 0.05 + rng.Float64()*0.05
		contrastDelta = 0.08 + rng.Float64()*0.07
		saturationDelta = 0.08 + rng.Float64()*0.07
	default:
		brightness = 0.15 + rng.Float64()*0.15
		contrastDelta = 0.3 + rng.Float64()*0.3
		saturationDelta = 0.3 + rng.Float64()*0.3
	}
	vf := fmt.Sprintf("eq=brightness=%.4f:contrast=%.4f:saturation=%.4f", brightness, 1.0+contrastDelta, 1.0+saturationDelta)
	return []string{
		"-y", "-i", srcPath,
		"-vf", vf,
		"-c:v", "libx264", "-crf", "18", "-preset", "fast",
		"-c:a", "copy",
		destPath,
	}
}

// buildCropArgs shifts framing by a few pixels, the perturbation dHash/pHash
// are most sensitive to since they encode coarse spatial structure.
func buildCropArgs(srcPath, destPath string, sev Severity, rng *mathrand.Rand) []string {
	var pixels int
	switch sev {
	case Subtle:
		pixels = 1 + rng.Intn(2) // 1-2
	case Moderate:
		pixels = 4 + rng.Intn(5) // 4-8
	default:
		pixels = 16 + rng.Intn(17) // 16-32
	}
	vf := fmt.Sprintf(
		"crop=w=iw-%d:h=ih-%d:x=%d:y=0,pad=iw+%d:ih:0:0",
		pixels, pixels/2, pixels, pixels,
	)
	return []string{
		"-y", "-i", srcPath,
		"-vf", vf,
		"-c:v", "libx264", "-crf", "18", "-preset", "fast",
		"-c:a", "copy",
		destPath,
	}
}

// buildRecompressTamperArgs re-encodes at a degraded CRF/resolution so SSIM
// and frame statistics drift without changing framing. Deterministic: no RNG
// needed since the degradation itself, not its exact placement, is what
// severity controls.
func buildRecompressTamperArgs(srcPath, destPath string, sev Severity) []string {
	var crf int
	var scale string
	switch sev {
	case Subtle:
		crf, scale = 28, "iw:ih"
	case Moderate:
		crf, scale = 36, "iw/2:ih/2"
	default:
		crf, scale = 45, "iw/4:ih/4"
	}
	return []string{
		"-y", "-i", srcPath,
		"-vf", fmt.Sprintf("scale=%s,scale=iw*4:ih*4", scale),
		"-c:v", "libx264", "-crf", strconv.Itoa(crf), "-preset", "veryfast",
		"-c:a", "copy",
		destPath,
	}
}

// buildAudioPitchShiftArgs resamples the audio track's apparent rate, which
// shifts pitch without changing duration at the container level — exercises
// audio.Fingerprint's comparison path independent of any video tamper.
func buildAudioPitchShiftArgs(srcPath, destPath string, sev Severity, rng *mathrand.Rand) []string {
	var shift float64
	switch sev {
	case Subtle:
		shift = 1.0 + (0.001 + rng.Float64()*0.002)
	case Moderate:
		shift = 1.0 + (0.01 + rng.Float64()*0.02)
	default:
		shift = 1.0 + (0.05 + rng.Float64()*0.1)
	}
	af := fmt.Sprintf("asetrate=44100*%.6f,aresample=44100", shift)
	return []string{
		"-y", "-i", srcPath,
		"-c:v", "copy",
		"-af", af,
		destPath,
	}
}

func (inj *Injector) recordSuccess() {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	inj.stats.TotalInjections++
}

func (inj *Injector) recordFailure() {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	inj.stats.FailedInjections++
}

// GetStats returns current injection statistics.
func (inj *Injector) GetStats() Stats {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	return inj.stats
}

func kindName(k Kind) string {
	switch k {
	case KindNoise:
		return "noise"
	case KindColorShift:
		return "color_shift"
	case KindCrop:
		return "crop"
	case KindRecompress:
		return "recompress"
	case KindAudioPitchShift:
		return "audio_pitch_shift"
	default:
		return "unknown"
	}
}

func severityName(s Severity) string {
	switch s {
	case Subtle:
		return "subtle"
	case Moderate:
		return "moderate"
	case Severe:
		return "severe"
	default:
		return "unknown"
	}
}
