// Package fetch acquires a source video from an http(s):// URL before
// Sign/Verify runs against it, so a candidate need not already be a local
// path. Adapted from the teacher's internal/services.Downloader: same
// retry-with-backoff and buffer-pool reuse, narrowed to this module's only
// input type (video files) and switched onto logrus/reelerr.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aaronsteers/ReelTrust/internal/pool"
	"github.com/aaronsteers/ReelTrust/internal/reelerr"
)

const maxRetries = 3

// IsURL reports whether path looks like an http(s) source rather than a
// local filesystem path, so Sign/Verify can decide whether to acquire it
// with a Fetcher before touching it.
func IsURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// Fetcher downloads video files from http(s) URLs with retry and basic MP4
// integrity validation.
type Fetcher struct {
	client     *http.Client
	bufferPool *pool.BufferPool
	maxSize    int64
	log        *logrus.Logger
}

// New constructs a Fetcher. A zero timeout defaults to 2 minutes (source
// videos are large); a zero maxSize defaults to 2 GiB.
func New(bufferPool *pool.BufferPool, maxSize int64, timeout time.Duration, log *logrus.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if maxSize <= 0 {
		maxSize = 2 * 1024 * 1024 * 1024
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}

	return &Fetcher{client: client, bufferPool: bufferPool, maxSize: maxSize, log: log}
}

// Fetch downloads url into memory, retrying on transient network errors.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, reelerr.New(reelerr.InputNotFound, "fetch.Fetch", "invalid URL scheme: must be http:// or https://")
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		data, err := f.fetchOnce(ctx, url, attempt)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return nil, reelerr.Wrap(reelerr.MediaFailure, "fetch.Fetch", err)
		}
		if attempt < maxRetries {
			f.log.WithFields(logrus.Fields{"attempt": attempt, "url": truncateURL(url)}).WithError(err).Warn("fetch attempt failed, retrying")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}

	return nil, reelerr.Wrap(reelerr.MediaFailure, "fetch.Fetch", fmt.Errorf("download failed after %d attempts: %w", maxRetries, lastErr))
}

// FetchToFile downloads url and streams it directly to destPath, for
// sources too large to hold in memory.
func (f *Fetcher) FetchToFile(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return reelerr.Wrap(reelerr.MediaFailure, "fetch.FetchToFile", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return reelerr.Wrap(reelerr.MediaFailure, "fetch.FetchToFile", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return reelerr.New(reelerr.MediaFailure, "fetch.FetchToFile", fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	out, err := os.Create(destPath)
	if err != nil {
		return reelerr.Wrap(reelerr.MediaFailure, "fetch.FetchToFile", err)
	}
	defer out.Close()

	limited := io.LimitReader(resp.Body, f.maxSize+1)
	n, err := io.Copy(out, limited)
	if err != nil {
		return reelerr.Wrap(reelerr.MediaFailure, "fetch.FetchToFile", err)
	}
	if n > f.maxSize {
		os.Remove(destPath)
		return reelerr.New(reelerr.MediaFailure, "fetch.FetchToFile", fmt.Sprintf("file exceeds max size %d bytes", f.maxSize))
	}
	return nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string, attempt int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	contentLength := resp.ContentLength
	if contentLength > f.maxSize {
		return nil, fmt.Errorf("file too large: %d bytes (max: %d)", contentLength, f.maxSize)
	}

	f.log.WithFields(logrus.Fields{"size": contentLength, "attempt": attempt, "url": truncateURL(url)}).Debug("fetching video")

	var data []byte
	if contentLength > 0 {
		expected := int(contentLength)
		buf := f.bufferPool.GetSized(expected)
		defer f.bufferPool.PutSized(buf)

		n, err := io.ReadFull(resp.Body, buf[:expected])
		if err != nil {
			return nil, fmt.Errorf("incomplete download: expected %d bytes, got %d bytes: %w", expected, n, err)
		}
		data = make([]byte, n)
		copy(data, buf[:n])
	} else {
		data, err = io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
		if err != nil {
			return nil, fmt.Errorf("read failed: %w", err)
		}
		if int64(len(data)) > f.maxSize {
			return nil, fmt.Errorf("file too large: %d bytes (max: %d)", len(data), f.maxSize)
		}
	}

	if len(data) < 100 {
		return nil, fmt.Errorf("file too small: %d bytes (likely corrupted or empty)", len(data))
	}
	if err := validateVideoData(data); err != nil {
		return nil, fmt.Errorf("video validation failed: %w", err)
	}

	return data, nil
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	retryable := []string{
		"connection reset", "connection refused", "timeout",
		"deadline exceeded", "temporary failure", "eof",
		"broken pipe", "incomplete download",
	}
	for _, r := range retryable {
		if strings.Contains(errStr, r) {
			return true
		}
	}
	return false
}

// validateVideoData checks for an MP4 ftyp box within the first 32 bytes —
// enough to reject non-video payloads without decoding.
func validateVideoData(data []byte) error {
	if len(data) < 32 {
		return fmt.Errorf("file too small to be valid video: %d bytes", len(data))
	}
	ftyp := []byte{0x66, 0x74, 0x79, 0x70} // "ftyp"
	for i := 0; i+4 <= 32 && i+4 <= len(data); i++ {
		if bytes.Equal(data[i:i+4], ftyp) {
			return nil
		}
	}
	return fmt.Errorf("missing ftyp box: file may not be a valid MP4")
}

func truncateURL(url string) string {
	if len(url) > 60 {
		return url[:57] + "..."
	}
	return url
}
