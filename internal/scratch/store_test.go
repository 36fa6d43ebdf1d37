package scratch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReserveProducesUniquePathsWithExtension(t *testing.T) {
	s, err := New(t.TempDir(), time.Minute, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Stop()

	a := s.Reserve("digest", ".mp4")
	b := s.Reserve("digest", ".mp4")
	if a == b {
		t.Fatalf("expected Reserve to produce unique paths, got %q twice", a)
	}
	if filepath.Ext(a) != ".mp4" {
		t.Fatalf("expected .mp4 extension, got %q", a)
	}
}

func TestReserveAddsLeadingDotToExtension(t *testing.T) {
	s, err := New(t.TempDir(), time.Minute, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Stop()

	path := s.Reserve("region", "mp4")
	if filepath.Ext(path) != ".mp4" {
		t.Fatalf("expected extension to gain a leading dot, got %q", path)
	}
}

func TestTrackThenGetRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, time.Minute, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Stop()

	path := filepath.Join(dir, "file.bin")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	id, err := s.Track(path, "test")
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	entry, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Path != path || entry.Size != 5 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestGetUnknownIDErrors(t *testing.T) {
	s, err := New(t.TempDir(), time.Minute, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Stop()

	if _, err := s.Get("does-not-exist"); err == nil {
		t.Fatalf("expected error for unknown entry ID")
	}
}

func TestGetExpiredEntryErrors(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Stop()

	path := filepath.Join(dir, "file.bin")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	id, err := s.Track(path, "test")
	if err != nil {
		t.Fatalf("Track: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if _, err := s.Get(id); err == nil {
		t.Fatalf("expected expired entry to error")
	}
}

func TestStopRemovesBaseDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scratch")
	s, err := New(dir, time.Minute, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Stop()

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected base dir to be removed after Stop, stat err = %v", err)
	}
}
