// Package evidence is the Evidence Extractor: it merges flagged worst
// windows into consolidated audit intervals and requests clips from the
// Media Adapter (spec.md §4.7).
package evidence

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/aaronsteers/ReelTrust/internal/reelerr"
	"github.com/aaronsteers/ReelTrust/media"
)

// Window is one flagged window, carrying only the timing fields the
// Extractor needs (start/end seconds). Callers derive this from a
// compare.WindowEvidence or compare.StatsWindowEvidence by converting frame
// indices to seconds via the same fps used to build the evidence.
type Window struct {
	StartSeconds float64
	EndSeconds   float64
	Source       string // e.g. "ssim", "dhash", "phash", "stats"
}

// Clip is a merged audit interval: the union of one or more overlapping or
// near-overlapping flagged windows.
type Clip struct {
	StartSeconds        float64
	EndSeconds          float64
	ContributingWindows []Window
}

// MergeWindows implements spec.md §4.7 steps 1-3: convert each window to a
// clip interval with lead-in, sort by start, and greedily merge windows
// whose gap is within mergeGapSeconds (inclusive bound). The result is
// order-invariant: feeding a permutation of the same windows yields the
// same merged intervals.
func MergeWindows(windows []Window, leadInSeconds, mergeGapSeconds float64) []Clip {
	if len(windows) == 0 {
		return nil
	}

	intervals := make([]Window, len(windows))
	for i, w := range windows {
		start := w.StartSeconds - leadInSeconds
		if start < 0 {
			start = 0
		}
		intervals[i] = Window{StartSeconds: start, EndSeconds: w.EndSeconds, Source: w.Source}
	}

	sort.SliceStable(intervals, func(i, j int) bool {
		if intervals[i].StartSeconds != intervals[j].StartSeconds {
			return intervals[i].StartSeconds < intervals[j].StartSeconds
		}
		return intervals[i].EndSeconds < intervals[j].EndSeconds
	})

	clips := []Clip{{
		StartSeconds:        intervals[0].StartSeconds,
		EndSeconds:          intervals[0].EndSeconds,
		ContributingWindows: []Window{intervals[0]},
	}}

	for _, next := range intervals[1:] {
		last := &clips[len(clips)-1]
		if next.StartSeconds <= last.EndSeconds+mergeGapSeconds {
			if next.EndSeconds > last.EndSeconds {
				last.EndSeconds = next.EndSeconds
			}
			last.ContributingWindows = append(last.ContributingWindows, next)
		} else {
			clips = append(clips, Clip{
				StartSeconds:        next.StartSeconds,
				EndSeconds:          next.EndSeconds,
				ContributingWindows: []Window{next},
			})
		}
	}

	return clips
}

// Artifact is one extracted audit artifact: the raw clip from the
// candidate, plus a side-by-side comparison against the stored digest.
type Artifact struct {
	Clip           Clip
	RawClipPath    string
	SideBySidePath string
}

// Extractor requests clips from a Media Adapter for each merged clip.
type Extractor struct {
	adapter *media.Adapter
	log     *logrus.Logger
}

// NewExtractor constructs an Extractor.
func NewExtractor(adapter *media.Adapter, log *logrus.Logger) *Extractor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Extractor{adapter: adapter, log: log}
}

// Extract requests a raw extraction and a side-by-side comparison clip for
// each merged clip, writing files under outDir.
func (e *Extractor) Extract(ctx context.Context, candidatePath, storedDigestPath, outDir string, clips []Clip) ([]Artifact, error) {
	artifacts := make([]Artifact, 0, len(clips))
	for i, clip := range clips {
		duration := clip.EndSeconds - clip.StartSeconds
		if duration <= 0 {
			continue
		}

		rawPath := fmt.Sprintf("%s/audit_clip_%02d_raw.mp4", outDir, i)
		if err := e.adapter.ExtractClip(ctx, candidatePath, rawPath, clip.StartSeconds, duration); err != nil {
			return artifacts, reelerr.Wrap(reelerr.MediaFailure, "evidence.Extract", err)
		}

		sbsPath := fmt.Sprintf("%s/audit_clip_%02d_sidebyside.mp4", outDir, i)
		if err := e.adapter.SideBySideClip(ctx, candidatePath, storedDigestPath, sbsPath, clip.StartSeconds, duration, "candidate", "stored digest"); err != nil {
			return artifacts, reelerr.Wrap(reelerr.MediaFailure, "evidence.Extract", err)
		}

		artifacts = append(artifacts, Artifact{Clip: clip, RawClipPath: rawPath, SideBySidePath: sbsPath})
		e.log.WithFields(logrus.Fields{"start": clip.StartSeconds, "end": clip.EndSeconds}).Debug("audit clip extracted")
	}
	return artifacts, nil
}
