// Package protocol defines the wire format of the scenebridge mailbox: the
// command envelope read from the request file and the result written to the
// response file.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is one command from the controller. Type is the only required
// field; everything else is command-specific.
type Envelope struct {
	Type      string         `json:"type"`
	Path      string         `json:"path,omitempty"`
	Component string         `json:"component,omitempty"`
	Property  string         `json:"property,omitempty"`
	Value     any            `json:"value,omitempty"`
	Values    map[string]any `json:"values,omitempty"`
	Query     string         `json:"query,omitempty"`
	Output    string         `json:"output,omitempty"`
	Wait      float64        `json:"wait,omitempty"`
	Limit     int            `json:"limit,omitempty"`
	Recursive bool           `json:"recursive,omitempty"`
}

// Describe returns a short human-readable form for response metadata.
func (e Envelope) Describe() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s", e.Type, e.Path)
	}
	return e.Type
}

// Idle is the request-file sentinel meaning "no request".
const Idle = "{}"

// ErrNoRequest is returned by Parse for the idle sentinel.
var ErrNoRequest = fmt.Errorf("no request")

// Parse decodes the request file contents: either a single envelope object
// or an array of envelopes for batch execution. The idle sentinel (an empty
// object) yields ErrNoRequest. An envelope without a type is malformed.
func Parse(data []byte) ([]Envelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrNoRequest
	}

	switch trimmed[0] {
	case '[':
		var envs []Envelope
		if err := json.Unmarshal(trimmed, &envs); err != nil {
			return nil, fmt.Errorf("parse request array: %w", err)
		}
		if len(envs) == 0 {
			return nil, ErrNoRequest
		}
		for i, e := range envs {
			if e.Type == "" {
				return nil, fmt.Errorf("request %d: missing type", i)
			}
		}
		return envs, nil
	case '{':
		var env Envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("parse request: %w", err)
		}
		if env.Type == "" {
			// An empty object is the idle sentinel, not an error.
			var raw map[string]json.RawMessage
			if err := json.Unmarshal(trimmed, &raw); err == nil && len(raw) == 0 {
				return nil, ErrNoRequest
			}
			return nil, fmt.Errorf("request: missing type")
		}
		return []Envelope{env}, nil
	default:
		return nil, fmt.Errorf("request must be a JSON object or array")
	}
}
