// Package metadata builds the metadata.json blob spec.md §4.5 step 4 names,
// field-for-field grounded on
// original_source/src/reeltrust/metadata.py's create_metadata.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/aaronsteers/ReelTrust/internal/reelerr"
)

// SourceFile is the source-file stat block.
type SourceFile struct {
	Name             string `json:"name"`
	SizeBytes        int64  `json:"size_bytes"`
	CreationTime     string `json:"creation_time"`
	ModificationTime string `json:"modification_time"`
}

// VideoInfo is the container-level summary spec.md §4.5 step 4 names.
type VideoInfo struct {
	Duration float64 `json:"duration"`
	Format   string  `json:"format"`
	Streams  int     `json:"streams"`
}

// GPSLocation is the optional GPS block.
type GPSLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Metadata is the full metadata.json blob.
type Metadata struct {
	Version           string                 `json:"version"`
	CreatedAt         string                 `json:"created_at"`
	SourceFile        SourceFile             `json:"source_file"`
	VideoInfo         VideoInfo              `json:"video_info"`
	UserIdentity      string                 `json:"user_identity,omitempty"`
	GPSLocation       *GPSLocation           `json:"gps_location,omitempty"`
	AdditionalInfo    map[string]interface{} `json:"additional_info,omitempty"`
	VideoCreationTime string                 `json:"video_creation_time,omitempty"`
}

// Options carries the optional fields create_metadata accepts.
type Options struct {
	UserIdentity   string
	GPS            *GPSLocation
	AdditionalInfo map[string]interface{}
}

type ffprobeOutput struct {
	Format struct {
		Duration   string            `json:"duration"`
		FormatName string            `json:"format_name"`
		Tags       map[string]string `json:"tags"`
	} `json:"format"`
	Streams []json.RawMessage `json:"streams"`
}

// Build extracts ffprobe metadata for videoPath and assembles the blob.
func Build(ctx context.Context, videoPath, ffprobePath string, opts Options) (Metadata, error) {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	info, err := os.Stat(videoPath)
	if err != nil {
		return Metadata{}, reelerr.Wrap(reelerr.InputNotFound, "metadata.Build", err)
	}

	probe, err := extractFFprobe(ctx, ffprobePath, videoPath)
	if err != nil {
		return Metadata{}, reelerr.Wrap(reelerr.MediaFailure, "metadata.Build", err)
	}

	var duration float64
	fmt.Sscanf(probe.Format.Duration, "%f", &duration)

	m := Metadata{
		Version:   "1.0",
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		SourceFile: SourceFile{
			Name:             filepath.Base(videoPath),
			SizeBytes:        info.Size(),
			CreationTime:     info.ModTime().UTC().Format(time.RFC3339),
			ModificationTime: info.ModTime().UTC().Format(time.RFC3339),
		},
		VideoInfo: VideoInfo{
			Duration: duration,
			Format:   probe.Format.FormatName,
			Streams:  len(probe.Streams),
		},
	}

	if opts.UserIdentity != "" {
		m.UserIdentity = opts.UserIdentity
	}
	if opts.GPS != nil {
		m.GPSLocation = opts.GPS
	}
	if len(opts.AdditionalInfo) > 0 {
		m.AdditionalInfo = opts.AdditionalInfo
	}
	if ct, ok := probe.Format.Tags["creation_time"]; ok {
		m.VideoCreationTime = ct
	}

	return m, nil
}

func extractFFprobe(ctx context.Context, ffprobePath, videoPath string) (*ffprobeOutput, error) {
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		videoPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}
	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe json: %w", err)
	}
	return &parsed, nil
}

// Save writes m to path with 2-space indentation, matching the original's
// json.dump(..., indent=2).
func Save(m Metadata, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads and parses a metadata.json file.
func Load(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, reelerr.Wrap(reelerr.InputNotFound, "metadata.Load", err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, reelerr.Wrap(reelerr.PackageMalformed, "metadata.Load", err)
	}
	return m, nil
}
