// Package state owns the persisted record of previously-fired alerts. It is
// the only memory the process has between runs, so Save is rename-atomic: a
// crash mid-write can never leave a half-written state file behind.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrStateCorrupt marks an unreadable or unparsable state file. Callers treat
// it as a warning and proceed with empty state; losing dedup history must
// never stop notifications.
var ErrStateCorrupt = errors.New("alert state file corrupt")

// Record tracks one fingerprint's lifetime.
type Record struct {
	FirstFiredAt time.Time `json:"first_fired_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

// fileSchema is the on-disk document. Unknown fields from future versions are
// ignored on load by plain JSON decoding.
type fileSchema struct {
	Version int               `json:"version"`
	Alerts  map[string]Record `json:"alerts"`
}

const schemaVersion = 1

// Store holds the fingerprint map for one run. Single-writer: concurrent
// processes against the same file are not supported, but Record is mutex-
// guarded so tickers may be evaluated in parallel within one run.
type Store struct {
	path string

	mu      sync.Mutex
	records map[string]Record
}

// New creates a store bound to path. Call Load before use.
func New(path string) *Store {
	return &Store{path: path, records: make(map[string]Record)}
}

// Load reads the persisted mapping. A missing file is a normal first run and
// yields empty state with no error; a corrupt file yields empty state and an
// ErrStateCorrupt the caller should log as a warning.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]Record)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}

	var doc fileSchema
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}
	if doc.Alerts != nil {
		s.records = doc.Alerts
	}
	return nil
}

// HasFired reports whether a fingerprint is already recorded.
func (s *Store) HasFired(fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[fingerprint]
	return ok
}

// Record marks a fingerprint seen at firedAt, inserting it on first sight and
// bumping last_seen_at otherwise. Entries are never deleted by the engine.
func (s *Store) Record(fingerprint string, firedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[fingerprint]; ok {
		rec.LastSeenAt = firedAt
		s.records[fingerprint] = rec
		return
	}
	s.records[fingerprint] = Record{FirstFiredAt: firedAt, LastSeenAt: firedAt}
}

// Len returns the number of recorded fingerprints.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Save persists the full mapping atomically: write to a temp file in the same
// directory, fsync, then rename over the target.
func (s *Store) Save() error {
	s.mu.Lock()
	doc := fileSchema{Version: schemaVersion, Alerts: s.records}
	data, err := json.MarshalIndent(doc, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal alert state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
