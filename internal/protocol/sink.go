package protocol

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Sink serializes results to the response file. The file is a single-slot
// mailbox: each write replaces the previous response, and readers detect a
// new response by the file's modification time advancing.
type Sink struct {
	Path string

	// Now is overridable for tests.
	Now func() time.Time
}

// NewSink creates a sink writing to path.
func NewSink(path string) *Sink {
	return &Sink{Path: path, Now: time.Now}
}

// Write emits a response: two metadata comment lines (the echoed request
// descriptor and the completion timestamp) followed by the payload.
func (s *Sink) Write(request, payload string) error {
	body := fmt.Sprintf("# request: %s\n# completed: %s\n%s\n",
		request, s.Now().UTC().Format(time.RFC3339), payload)

	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return fmt.Errorf("create response directory: %w", err)
	}
	// Rename so a reader polling the file never sees a partial write.
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(body), 0644); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("publish response: %w", err)
	}
	return nil
}
