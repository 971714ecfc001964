package store

import (
	"sync"
	"time"
)

// Memory is an in-memory KV used by tests and the simulated host. It
// survives a simulated restart (the map outlives the bridge instance) but
// not a real process exit.
type Memory struct {
	mu       sync.Mutex
	values   map[string]string
	outcomes []Outcome
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// Set writes a key.
func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Get reads a key, returning fallback when the key is absent.
func (m *Memory) Get(key, fallback string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return fallback, nil
}

// Delete removes a key.
func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// RecordOutcome appends a terminal task outcome.
func (m *Memory) RecordOutcome(kind, result, detail string, startedAt, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, Outcome{
		ID:        int64(len(m.outcomes) + 1),
		Kind:      kind,
		Result:    result,
		Detail:    detail,
		StartedAt: startedAt,
		EndedAt:   endedAt,
	})
	return nil
}

// Outcomes returns a copy of the recorded outcomes, oldest first.
func (m *Memory) Outcomes() []Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Outcome(nil), m.outcomes...)
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}
