package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileIsEmptyState(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "alert-state.json"))
	if err := s.Load(); err != nil {
		t.Fatalf("Load() on missing file = %v, want nil", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alert-state.json")
	firedAt := time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC)

	s := New(path)
	if err := s.Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	s.Record("AAPL|price_above|bound=250.0000|2026-03-02T21:00:00Z", firedAt)
	s.Record("VOO|ma_crossover|ma=5/20|2026-03-02T21:00:00Z", firedAt)
	if err := s.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	reloaded := New(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Len() != 2 {
		t.Fatalf("reloaded Len() = %d, want 2", reloaded.Len())
	}
	if !reloaded.HasFired("AAPL|price_above|bound=250.0000|2026-03-02T21:00:00Z") {
		t.Error("fingerprint lost across save/load")
	}
	if reloaded.HasFired("AAPL|price_above|bound=250.0000|2026-03-03T21:00:00Z") {
		t.Error("HasFired() true for unseen fingerprint")
	}
}

func TestRecordBumpsLastSeenOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alert-state.json")
	first := time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC)
	later := first.Add(24 * time.Hour)

	s := New(path)
	s.Record("fp", first)
	s.Record("fp", later)
	if err := s.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read state file: %v", err)
	}
	var doc struct {
		Version int               `json:"version"`
		Alerts  map[string]Record `json:"alerts"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("state file is not valid JSON: %v", err)
	}
	rec, ok := doc.Alerts["fp"]
	if !ok {
		t.Fatal("fingerprint missing from saved document")
	}
	if !rec.FirstFiredAt.Equal(first) {
		t.Errorf("first_fired_at = %v, want %v (must not move)", rec.FirstFiredAt, first)
	}
	if !rec.LastSeenAt.Equal(later) {
		t.Errorf("last_seen_at = %v, want %v", rec.LastSeenAt, later)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated json", `{"version": 1, "alerts": {`},
		{"not json at all", "definitely not json"},
		{"wrong shape", `{"version": "one", "alerts": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "alert-state.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("failed to seed file: %v", err)
			}
			s := New(path)
			err := s.Load()
			if !errors.Is(err, ErrStateCorrupt) {
				t.Fatalf("Load() = %v, want ErrStateCorrupt", err)
			}
			if s.Len() != 0 {
				t.Errorf("Len() after corrupt load = %d, want 0", s.Len())
			}
		})
	}
}

func TestLoadIgnoresUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alert-state.json")
	content := `{
		"version": 2,
		"written_by": "a future release",
		"alerts": {
			"fp": {"first_fired_at": "2026-03-02T21:00:00Z", "last_seen_at": "2026-03-02T21:00:00Z", "extra": 42}
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	s := New(path)
	if err := s.Load(); err != nil {
		t.Fatalf("Load() = %v, want nil for forward-compatible document", err)
	}
	if !s.HasFired("fp") {
		t.Error("known fields should survive unknown siblings")
	}
}

func TestSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alert-state.json")

	s := New(path)
	s.Record("fp", time.Now())
	if err := s.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	// A second save replaces the file in place and leaves no temp debris.
	s.Record("fp2", time.Now())
	if err := s.Save(); err != nil {
		t.Fatalf("second Save() failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to list state dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "alert-state.json" {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("state dir contains %v, want only alert-state.json", names)
	}
}

func TestSaveCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "alert-state.json")
	s := New(path)
	s.Record("fp", time.Now())
	if err := s.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("state file missing after save: %v", err)
	}
}
