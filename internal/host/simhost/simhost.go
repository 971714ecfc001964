// Package simhost provides a local simulated host environment for the
// serve command and for tests. It models play mode with a spin-up delay
// and writes capture artifacts as real files.
package simhost

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Sim is a simulated host environment.
type Sim struct {
	mu           sync.Mutex
	playing      bool
	paused       bool
	enteredAt    time.Time
	rebuildError string

	// SpinUp is how long play mode takes to become ready after entry.
	SpinUp time.Duration

	// Now is overridable for tests.
	Now func() time.Time
}

// New creates a simulated host with a short spin-up delay.
func New() *Sim {
	return &Sim{SpinUp: 200 * time.Millisecond, Now: time.Now}
}

// EnterPlayMode switches into play mode.
func (s *Sim) EnterPlayMode() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		return fmt.Errorf("already in play mode")
	}
	s.playing = true
	s.paused = false
	s.enteredAt = s.Now()
	log.Println("simhost: entered play mode")
	return nil
}

// ExitPlayMode reverts to edit mode. A redundant exit is a no-op.
func (s *Sim) ExitPlayMode() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		log.Println("simhost: exited play mode")
	}
	s.playing = false
	s.paused = false
	return nil
}

// PlayModeReady reports running-and-not-paused, after the spin-up delay.
func (s *Sim) PlayModeReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing && !s.paused && s.Now().Sub(s.enteredAt) >= s.SpinUp
}

// InPlayMode reports whether play mode is active, paused or not.
func (s *Sim) InPlayMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// SetPaused pauses or resumes play mode.
func (s *Sim) SetPaused(p bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = p
}

// CaptureScreenshot writes a placeholder artifact to path.
func (s *Sim) CaptureScreenshot(path string) error {
	s.mu.Lock()
	playing := s.playing
	s.mu.Unlock()
	if !playing {
		return fmt.Errorf("not in play mode")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create capture directory: %w", err)
	}
	body := fmt.Sprintf("capture taken at %s\n", s.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return fmt.Errorf("write capture: %w", err)
	}
	return nil
}

// RequestRebuild pretends to kick off the external rebuild step. The
// simulated rebuild never restarts the process; tests drive the outcome
// through SetRebuildError.
func (s *Sim) RequestRebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuildError = ""
	log.Println("simhost: rebuild requested")
	return nil
}

// RebuildError returns the reported rebuild diagnostics.
func (s *Sim) RebuildError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuildError
}

// SetRebuildError injects a rebuild failure.
func (s *Sim) SetRebuildError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuildError = msg
}
