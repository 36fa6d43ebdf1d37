// Package config loads the tunables spec.md §6 names as "design-level
// defaults" — digest width/CRF/preset, comparator window size and
// thresholds, worker counts, external tool paths — from the environment,
// falling back to those defaults. Reconstructed from the contract the
// teacher's cmd/api/main.go expects of an internal/config.Load() that was
// referenced but never retrieved in the pack.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
)

// Config holds every tunable the core needs. Field names mirror spec.md §6.
type Config struct {
	// Digest / recompression parameters (spec.md §6 "Thresholds").
	DigestWidth  int
	DigestCRF    int
	DigestPreset string

	// Comparator parameters.
	WindowSize           int
	DefaultFPS           float64 // Probe() fallback only, never a silent override.
	HashThresholdBits    float64
	CorrelationThreshold float64
	MADThreshold         float64
	SSIMThresholdVerify  float64
	SSIMThresholdStrict  float64

	// Evidence Extractor parameters.
	AuditLeadInSeconds float64
	AuditMergeGapSeconds float64

	// Fingerprint Engine parameters.
	HashSize int

	// Resource model.
	MaxWorkers     int
	BufferPoolSize int
	BufferSize     int
	ScratchTTL     time.Duration

	// External tool paths.
	FFmpegPath  string
	FFprobePath string
	FpcalcPath  string

	// http(s) source acquisition (internal/fetch), for Sign/Verify calls
	// given a URL instead of a local path.
	FetchTimeout time.Duration
	FetchMaxSize int64
}

// Defaults returns spec.md's design-level defaults verbatim.
func Defaults() Config {
	return Config{
		DigestWidth:  240,
		DigestCRF:    23,
		DigestPreset: "slow",

		WindowSize:           60,
		DefaultFPS:           30.0,
		HashThresholdBits:    5.0,
		CorrelationThreshold: 0.90,
		MADThreshold:         0.8,
		SSIMThresholdVerify:  0.92,
		SSIMThresholdStrict:  0.99,

		AuditLeadInSeconds:   1.5,
		AuditMergeGapSeconds: 5.0,

		HashSize: 8,

		MaxWorkers:     4,
		BufferPoolSize: 8,
		BufferSize:     1 << 20,
		ScratchTTL:     15 * time.Minute,

		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		FpcalcPath:  "fpcalc",

		FetchTimeout: 2 * time.Minute,
		FetchMaxSize: 2 * 1024 * 1024 * 1024,
	}
}

// Load layers environment variables prefixed REELTRUST_ over Defaults().
// Unset variables keep the default. A nil-returning error means the env
// provider itself failed to read the process environment (never a parse
// failure from a caller-supplied value, since koanf's env provider here
// only fills string leaves the struct already typed elsewhere).
func Load() (Config, error) {
	k := koanf.New(".")
	defaults := Defaults()

	flat := map[string]interface{}{
		"digest_width":          defaults.DigestWidth,
		"digest_crf":            defaults.DigestCRF,
		"digest_preset":         defaults.DigestPreset,
		"window_size":           defaults.WindowSize,
		"default_fps":           defaults.DefaultFPS,
		"hash_threshold_bits":   defaults.HashThresholdBits,
		"correlation_threshold": defaults.CorrelationThreshold,
		"mad_threshold":         defaults.MADThreshold,
		"ssim_threshold_verify": defaults.SSIMThresholdVerify,
		"ssim_threshold_strict": defaults.SSIMThresholdStrict,
		"audit_lead_in_seconds": defaults.AuditLeadInSeconds,
		"audit_merge_gap_seconds": defaults.AuditMergeGapSeconds,
		"hash_size":             defaults.HashSize,
		"max_workers":           defaults.MaxWorkers,
		"buffer_pool_size":      defaults.BufferPoolSize,
		"buffer_size":           defaults.BufferSize,
		"ffmpeg_path":           defaults.FFmpegPath,
		"ffprobe_path":          defaults.FFprobePath,
		"fpcalc_path":           defaults.FpcalcPath,
	}

	if err := k.Load(confmap.Provider(flat, "."), nil); err != nil {
		return defaults, err
	}
	if err := k.Load(env.Provider("REELTRUST_", ".", envKeyMapper), nil); err != nil {
		return defaults, err
	}

	cfg := defaults
	cfg.DigestWidth = k.Int("digest_width")
	cfg.DigestCRF = k.Int("digest_crf")
	cfg.DigestPreset = k.String("digest_preset")
	cfg.WindowSize = k.Int("window_size")
	cfg.DefaultFPS = k.Float64("default_fps")
	cfg.HashThresholdBits = k.Float64("hash_threshold_bits")
	cfg.CorrelationThreshold = k.Float64("correlation_threshold")
	cfg.MADThreshold = k.Float64("mad_threshold")
	cfg.SSIMThresholdVerify = k.Float64("ssim_threshold_verify")
	cfg.SSIMThresholdStrict = k.Float64("ssim_threshold_strict")
	cfg.AuditLeadInSeconds = k.Float64("audit_lead_in_seconds")
	cfg.AuditMergeGapSeconds = k.Float64("audit_merge_gap_seconds")
	cfg.HashSize = k.Int("hash_size")
	cfg.MaxWorkers = k.Int("max_workers")
	cfg.BufferPoolSize = k.Int("buffer_pool_size")
	cfg.BufferSize = k.Int("buffer_size")
	cfg.FFmpegPath = k.String("ffmpeg_path")
	cfg.FFprobePath = k.String("ffprobe_path")
	cfg.FpcalcPath = k.String("fpcalc_path")

	return cfg, nil
}

// envKeyMapper turns REELTRUST_DIGEST_WIDTH into digest_width, matching the
// flat, dot-free key space used by the defaults map above.
func envKeyMapper(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, "REELTRUST_"))
}
