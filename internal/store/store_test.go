package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "bridge.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestSetGetDelete(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	v, err := s.Get("capture.pending", "missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != "missing" {
		t.Errorf("Expected fallback for absent key, got %q", v)
	}

	if err := s.Set("capture.pending", "1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, _ = s.Get("capture.pending", "")
	if v != "1" {
		t.Errorf("Expected 1, got %q", v)
	}

	// Overwrite
	if err := s.Set("capture.pending", "0"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, _ = s.Get("capture.pending", "")
	if v != "0" {
		t.Errorf("Expected 0 after overwrite, got %q", v)
	}

	if err := s.Delete("capture.pending"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	v, _ = s.Get("capture.pending", "gone")
	if v != "gone" {
		t.Errorf("Expected fallback after delete, got %q", v)
	}

	// Deleting an absent key is fine
	if err := s.Delete("never.set"); err != nil {
		t.Errorf("Delete of absent key failed: %v", err)
	}
}

func TestSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bridge.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := s.Set("rebuild.startTime", "2026-01-02T15:04:05Z"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	s.Close()

	// Reopen simulates a host restart.
	s2, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer s2.Close()

	v, err := s2.Get("rebuild.startTime", "")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if v != "2026-01-02T15:04:05Z" {
		t.Errorf("Value did not survive reopen, got %q", v)
	}
}

func TestTypedHelpers(t *testing.T) {
	kv := NewMemory()

	if err := SetBool(kv, "flag", true); err != nil {
		t.Fatalf("SetBool failed: %v", err)
	}
	b, err := GetBool(kv, "flag", false)
	if err != nil || !b {
		t.Errorf("GetBool = %v, %v; want true", b, err)
	}
	b, _ = GetBool(kv, "absent", true)
	if !b {
		t.Error("GetBool fallback should be true")
	}

	now := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
	if err := SetTime(kv, "ts", now); err != nil {
		t.Fatalf("SetTime failed: %v", err)
	}
	got, err := GetTime(kv, "ts")
	if err != nil {
		t.Fatalf("GetTime failed: %v", err)
	}
	if !got.Equal(now) {
		t.Errorf("GetTime = %v, want %v", got, now)
	}

	zero, _ := GetTime(kv, "absent")
	if !zero.IsZero() {
		t.Errorf("GetTime on absent key should be zero, got %v", zero)
	}

	if err := SetFloat(kv, "wait", 1.5); err != nil {
		t.Fatalf("SetFloat failed: %v", err)
	}
	f, _ := GetFloat(kv, "wait", 0)
	if f != 1.5 {
		t.Errorf("GetFloat = %v, want 1.5", f)
	}
	f, _ = GetFloat(kv, "absent", 2.0)
	if f != 2.0 {
		t.Errorf("GetFloat fallback = %v, want 2.0", f)
	}
}

func TestOutcomes(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	start := time.Now().UTC().Add(-2 * time.Second)
	end := time.Now().UTC()

	if err := s.RecordOutcome("capture", "success", "wrote shot.png", start, end); err != nil {
		t.Fatalf("RecordOutcome failed: %v", err)
	}
	if err := s.RecordOutcome("rebuild", "failure", "compile error", start, end); err != nil {
		t.Fatalf("RecordOutcome failed: %v", err)
	}

	outcomes, err := s.ListOutcomes(10)
	if err != nil {
		t.Fatalf("ListOutcomes failed: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("Expected 2 outcomes, got %d", len(outcomes))
	}
	// Newest first
	if outcomes[0].Kind != "rebuild" {
		t.Errorf("Expected rebuild first, got %s", outcomes[0].Kind)
	}
	if outcomes[1].Result != "success" {
		t.Errorf("Expected success, got %s", outcomes[1].Result)
	}
}
