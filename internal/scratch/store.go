// Package scratch manages the transient, uniquely named files an
// operation creates along the way: recompressed digests, audit clips,
// cropped regions. Every entry has a TTL and is deleted in the background;
// Stop removes whatever is left so a scratch directory never outlives its
// owning operation.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Entry describes one file tracked by a Store.
type Entry struct {
	ID        string
	Path      string
	Label     string
	CreatedAt time.Time
	ExpiresAt time.Time
	Size      int64
}

// Store owns a base directory of transient files with TTL-based cleanup.
type Store struct {
	baseDir string
	entries map[string]*Entry
	mu      sync.RWMutex
	ttl     time.Duration
	ticker  *time.Ticker
	stop    chan struct{}
	log     *logrus.Logger
}

// New creates a Store rooted at baseDir, starting a background cleanup loop.
// A zero ttl defaults to 15 minutes. A nil logger falls back to the standard
// logrus logger.
func New(baseDir string, ttl time.Duration, log *logrus.Logger) (*Store, error) {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("scratch: create base dir %s: %w", baseDir, err)
	}

	s := &Store{
		baseDir: baseDir,
		entries: make(map[string]*Entry),
		ttl:     ttl,
		stop:    make(chan struct{}),
		log:     log,
	}
	s.ticker = time.NewTicker(time.Minute)
	go s.cleanupLoop()

	log.WithFields(logrus.Fields{"dir": baseDir, "ttl": ttl}).Debug("scratch store initialized")
	return s, nil
}

// Reserve returns a fresh path inside the store's base directory for the
// given label (used only to keep filenames human-readable) and extension.
// The path is not tracked until Track is called with the file's final size.
func (s *Store) Reserve(label, ext string) string {
	id := uuid.New().String()
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}
	name := fmt.Sprintf("%s-%s%s", label, id[:8], ext)
	return filepath.Join(s.baseDir, name)
}

// Track registers an on-disk file for TTL-based deletion and returns its
// tracking ID.
func (s *Store) Track(path, label string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("scratch: stat %s: %w", path, err)
	}

	id := uuid.New().String()
	now := time.Now()
	e := &Entry{
		ID:        id,
		Path:      path,
		Label:     label,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		Size:      info.Size(),
	}

	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()

	return id, nil
}

// Get returns the entry for id, or an error if it is unknown or expired.
func (s *Store) Get(id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("scratch: unknown entry %s", id)
	}
	if time.Now().After(e.ExpiresAt) {
		return nil, fmt.Errorf("scratch: entry expired %s", id)
	}
	return e, nil
}

func (s *Store) cleanupLoop() {
	for {
		select {
		case <-s.ticker.C:
			s.cleanup()
		case <-s.stop:
			s.ticker.Stop()
			return
		}
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()
	now := time.Now()
	var expired []*Entry
	for id, e := range s.entries {
		if now.After(e.ExpiresAt) {
			expired = append(expired, e)
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()

	for _, e := range expired {
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			s.log.WithError(err).WithField("path", e.Path).Warn("scratch cleanup failed to remove file")
		}
	}
	if len(expired) > 0 {
		s.log.WithField("count", len(expired)).Debug("scratch cleanup removed expired entries")
	}
}

// Stop halts the cleanup loop and deletes every remaining tracked file and
// the base directory itself. Safe to call once per Store.
func (s *Store) Stop() {
	close(s.stop)

	s.mu.Lock()
	entries := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.entries = nil
	s.mu.Unlock()

	for _, e := range entries {
		_ = os.Remove(e.Path)
	}
	_ = os.RemoveAll(s.baseDir)
}
