// Package reeltrust is the root facade: it wires config, logging, the
// worker pool, the Media Adapter, the Fingerprint Engine, and a scratch
// store into ready-to-use Signer and Verifier instances. Grounded on
// cmd/api/main.go's service-construction order (config -> pools -> adapter
// -> services), minus the Fiber HTTP layer this module has no use for.
package reeltrust

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aaronsteers/ReelTrust/fingerprint"
	"github.com/aaronsteers/ReelTrust/internal/config"
	"github.com/aaronsteers/ReelTrust/internal/fetch"
	"github.com/aaronsteers/ReelTrust/internal/pool"
	"github.com/aaronsteers/ReelTrust/internal/scratch"
	"github.com/aaronsteers/ReelTrust/manifest"
	"github.com/aaronsteers/ReelTrust/media"
	"github.com/aaronsteers/ReelTrust/metadata"
	"github.com/aaronsteers/ReelTrust/signer"
	"github.com/aaronsteers/ReelTrust/verifier"
)

// Core owns every long-lived component a Sign/Verify call needs. Construct
// one per process (or per long-running job); Close releases its scratch
// directory and worker pool.
type Core struct {
	Config  config.Config
	Log     *logrus.Logger
	Adapter *media.Adapter
	Engine  *fingerprint.Engine
	Scratch *scratch.Store
	Fetcher *fetch.Fetcher
	Signer  *signer.Signer
	Verifier *verifier.Verifier

	workers *pool.WorkerPool
}

// Option customizes New.
type Option func(*options)

type options struct {
	scratchBaseDir      string
	verifyCacheSize     int
	log                 *logrus.Logger
	regionFractions     []float64
	regionCrossCheck    bool
}

// WithScratchDir overrides the default OS temp dir for transient artifacts.
func WithScratchDir(dir string) Option {
	return func(o *options) { o.scratchBaseDir = dir }
}

// WithVerifyCacheSize overrides the Verifier's recompression cache size
// (entries). Zero disables the cache.
func WithVerifyCacheSize(n int) Option {
	return func(o *options) { o.verifyCacheSize = n }
}

// WithLogger overrides the default logrus.StandardLogger().
func WithLogger(log *logrus.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithRegions turns on concentric-region fingerprinting (SPEC_FULL.md
// supplement): Sign computes region sub-manifests at the given fractions
// (nil uses regions.DefaultFractions) and Verify cross-checks them whenever
// a package carries region data.
func WithRegions(fractions []float64) Option {
	return func(o *options) {
		o.regionFractions = fractions
		o.regionCrossCheck = true
	}
}

// New loads config.Load() and assembles a Core ready to Sign and Verify.
func New(opts ...Option) (*Core, error) {
	o := &options{scratchBaseDir: "", verifyCacheSize: 32}
	for _, fn := range opts {
		fn(o)
	}
	if o.log == nil {
		o.log = logrus.StandardLogger()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("reeltrust.New: load config: %w", err)
	}

	scratchDir := o.scratchBaseDir
	if scratchDir == "" {
		scratchDir = defaultScratchDir()
	}
	store, err := scratch.New(scratchDir, cfg.ScratchTTL, o.log)
	if err != nil {
		return nil, fmt.Errorf("reeltrust.New: scratch store: %w", err)
	}

	workers := pool.NewWorkerPool(cfg.MaxWorkers)
	workers.Start()

	adapter := media.NewAdapter(cfg.FFmpegPath, cfg.FFprobePath, o.log)
	engine := fingerprint.NewEngine(cfg.HashSize, workers)

	bufferPool := pool.NewBufferPool(cfg.BufferPoolSize, cfg.BufferSize)
	fetcher := fetch.New(bufferPool, cfg.FetchMaxSize, cfg.FetchTimeout, o.log)

	s := signer.New(cfg, adapter, engine, store, fetcher, o.log)
	v, err := verifier.New(cfg, adapter, engine, store, fetcher, o.verifyCacheSize, o.log)
	if err != nil {
		workers.Stop()
		store.Stop()
		return nil, fmt.Errorf("reeltrust.New: verifier: %w", err)
	}
	if o.regionCrossCheck {
		s.EnableRegions(o.regionFractions)
		v.EnableRegionCrossCheck()
	}

	registerMetrics()

	return &Core{
		Config:   cfg,
		Log:      o.log,
		Adapter:  adapter,
		Engine:   engine,
		Scratch:  store,
		Fetcher:  fetcher,
		Signer:   s,
		Verifier: v,
		workers:  workers,
	}, nil
}

// Close stops the worker pool and removes any remaining scratch files.
// Calling it again is a no-op.
func (c *Core) Close() {
	if c.workers != nil {
		c.workers.Stop()
		c.workers = nil
	}
	if c.Scratch != nil {
		c.Scratch.Stop()
		c.Scratch = nil
	}
}

// Sign builds a signed package for sourcePath under packageDir, instrumented
// with the same sign/verify metrics pair the Admin-facing tooling reads. A
// widthOverride of 0 uses c.Config.DigestWidth.
func (c *Core) Sign(ctx context.Context, sourcePath, packageDir string, opts metadata.Options, widthOverride int) (*manifest.Manifest, error) {
	start := time.Now()
	s := c.Signer
	if widthOverride > 0 && widthOverride != c.Config.DigestWidth {
		cfg := c.Config
		cfg.DigestWidth = widthOverride
		s = signer.New(cfg, c.Adapter, c.Engine, c.Scratch, c.Fetcher, c.Log)
	}
	m, err := s.Sign(ctx, sourcePath, packageDir, opts)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observeOperation("sign", outcome, start)
	return m, err
}

// Verify checks candidatePath against packageDir. A widthOverride of 0 uses
// c.Config.DigestWidth; an ssimThresholdOverride of 0 uses
// c.Config.SSIMThresholdVerify.
func (c *Core) Verify(ctx context.Context, candidatePath, packageDir string, opts verifier.Options, widthOverride int, ssimThresholdOverride float64) (*verifier.Result, error) {
	start := time.Now()
	v := c.Verifier
	if (widthOverride > 0 && widthOverride != c.Config.DigestWidth) || (ssimThresholdOverride > 0 && ssimThresholdOverride != c.Config.SSIMThresholdVerify) {
		cfg := c.Config
		if widthOverride > 0 {
			cfg.DigestWidth = widthOverride
		}
		if ssimThresholdOverride > 0 {
			cfg.SSIMThresholdVerify = ssimThresholdOverride
		}
		overrideVerifier, err := verifier.New(cfg, c.Adapter, c.Engine, c.Scratch, c.Fetcher, 0, c.Log)
		if err != nil {
			return nil, err
		}
		v = overrideVerifier
	}
	result, err := v.Verify(ctx, candidatePath, packageDir, opts)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	} else if !result.IsValid {
		outcome = "invalid"
	}
	observeOperation("verify", outcome, start)
	return result, err
}
