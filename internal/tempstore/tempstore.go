// Package tempstore is the temp-storage collaborator: it stages artifact and
// archive files on disk and purges them after their retention window.
package tempstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const filePrefix = "pdfsplit-"

// Store manages temp files under one directory with TTL-based cleanup.
type Store struct {
	dir string

	mu        sync.Mutex
	scheduled map[string]time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates the staging directory if needed and returns a Store.
func New(dir string) (*Store, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "pdfsplitd")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return &Store{dir: dir, scheduled: map[string]time.Time{}, stop: make(chan struct{})}, nil
}

// Dir returns the staging directory.
func (s *Store) Dir() string { return s.dir }

// Stage writes artifact bytes to a fresh temp file and returns its path.
// Implements split.ArtifactSink.
func (s *Store) Stage(fileName string, data []byte) (string, error) {
	name := fmt.Sprintf("%s%s_%s", filePrefix, uuid.NewString(), sanitizeBase(fileName))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("stage artifact: %w", err)
	}
	return path, nil
}

// CreateTemp opens a fresh temp file for streaming writes (archives).
func (s *Store) CreateTemp(pattern string) (*os.File, error) {
	return os.CreateTemp(s.dir, filePrefix+pattern)
}

// ScheduleCleanup registers path for removal once ttl elapses.
func (s *Store) ScheduleCleanup(path string, ttl time.Duration) {
	s.mu.Lock()
	s.scheduled[path] = time.Now().Add(ttl)
	s.mu.Unlock()
}

// Remove deletes a staged file immediately and drops its schedule entry.
func (s *Store) Remove(path string) {
	s.mu.Lock()
	delete(s.scheduled, path)
	s.mu.Unlock()
	_ = os.Remove(path)
}

// Start launches the periodic sweeper. maxAge bounds the life of any staged
// file regardless of schedule, catching leftovers from crashed runs.
func (s *Store) Start(interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.Sweep(maxAge)
			}
		}
	}()
}

// Sweep removes scheduled files whose TTL elapsed and any staged file older
// than maxAge.
func (s *Store) Sweep(maxAge time.Duration) {
	now := time.Now()

	s.mu.Lock()
	var due []string
	for path, at := range s.scheduled {
		if now.After(at) {
			due = append(due, path)
			delete(s.scheduled, path)
		}
	}
	s.mu.Unlock()

	for _, path := range due {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("temp cleanup failed")
		}
	}

	if maxAge <= 0 {
		return
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) >= maxAge {
			_ = os.Remove(filepath.Join(s.dir, e.Name()))
		}
	}
}

// Close stops the sweeper.
func (s *Store) Close() {
	close(s.stop)
	s.wg.Wait()
}

func sanitizeBase(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, string(filepath.Separator), "_")
	if base == "." || base == "" {
		base = "artifact.pdf"
	}
	return base
}
