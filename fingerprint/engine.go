// Package fingerprint is the Fingerprint Engine: three pure functions over a
// decoded frame sequence (dHash, pHash, frame statistics), fanned out
// concurrently per spec.md §5's "parallelize the three fingerprint passes"
// allowance and §9's "three consumers of one decode stream" note.
package fingerprint

import (
	"github.com/aaronsteers/ReelTrust/internal/pool"
	"github.com/aaronsteers/ReelTrust/internal/reelerr"
	"github.com/aaronsteers/ReelTrust/media"
)

// Fingerprints holds the three equal-length per-frame sequences spec.md §3
// defines as sharing length N.
type Fingerprints struct {
	DHash []uint64
	PHash []uint64
	Stats []FrameStats
}

// Engine computes Fingerprints over a buffered frame sequence.
type Engine struct {
	hashSize int
	workers  *pool.WorkerPool
}

// NewEngine constructs an Engine. workers may be nil, in which case
// computation runs on the calling goroutine.
func NewEngine(hashSize int, workers *pool.WorkerPool) *Engine {
	if hashSize <= 0 {
		hashSize = 8
	}
	return &Engine{hashSize: hashSize, workers: workers}
}

// Compute drains seq (buffering it once) and fans the three fingerprint
// passes out over the buffered frames. It validates the invariant that all
// three sequences end up the same length N, returning a
// reelerr.InternalInvariant error if they do not (sign-time fatal per
// spec.md §7).
func (e *Engine) Compute(seq *media.FrameSequence) (*Fingerprints, error) {
	frames, err := seq.All()
	if err != nil {
		return nil, reelerr.Wrap(reelerr.MediaFailure, "fingerprint.Engine.Compute", err)
	}

	n := len(frames)
	fp := &Fingerprints{
		DHash: make([]uint64, n),
		PHash: make([]uint64, n),
		Stats: make([]FrameStats, n),
	}

	tasks := make([]func(), 0, n*3)
	for idx, frame := range frames {
		idx, frame := idx, frame
		tasks = append(tasks,
			func() {
				img := frameToImage(frame)
				fp.DHash[idx] = ComputeDHash(img, e.hashSize)
			},
			func() {
				img := frameToImage(frame)
				fp.PHash[idx] = ComputePHash(img, e.hashSize)
			},
			func() {
				fp.Stats[idx] = ComputeFrameStats(frame)
			},
		)
	}

	if e.workers != nil {
		e.workers.Run(tasks)
	} else {
		for _, t := range tasks {
			t()
		}
	}

	if len(fp.DHash) != len(fp.PHash) || len(fp.DHash) != len(fp.Stats) {
		return nil, reelerr.New(reelerr.InternalInvariant, "fingerprint.Engine.Compute",
			"dhash/phash/stats sequence lengths disagree")
	}

	return fp, nil
}
