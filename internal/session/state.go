// SPDX-License-Identifier: MIT
package session

import "encoding/json"

// State is an immutable view of the meter published to observers.
// History is shared between observers and must not be modified.
type State struct {
	// History holds the rolling decibel levels, oldest first. Its length
	// always equals the configured capacity.
	History []float64
	// Active reports whether a capture session is running.
	Active bool
	// SourceLabel is the last path segment of the playing source.
	SourceLabel string
	// LastError is the failure that ended or prevented the latest session.
	LastError error
}

type stateJSON struct {
	History     []float64 `json:"decibel_history"`
	Active      bool      `json:"is_active"`
	SourceLabel string    `json:"current_source_label"`
	LastError   string    `json:"last_error,omitempty"`
}

// MarshalJSON encodes the state for display consumers.
func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON{
		History:     s.History,
		Active:      s.Active,
		SourceLabel: s.SourceLabel,
	}
	if out.History == nil {
		out.History = []float64{}
	}
	if s.LastError != nil {
		out.LastError = s.LastError.Error()
	}
	return json.Marshal(out)
}
