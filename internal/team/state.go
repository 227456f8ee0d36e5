// ABOUTME: Continuation state save/load for RoundRobin teams
// ABOUTME: Opaque JSON blob carrying the transcript and next turn index

package team

import (
	"encoding/json"
	"fmt"
)

// teamState is the serialized form of a team's continuation point.
type teamState struct {
	Transcript []Message `json:"transcript"`
	Next       int       `json:"next"`
}

// SaveState serializes the team's continuation point. Callers treat the blob
// as opaque. Must not be called while a run's stream is still open.
func (t *RoundRobin) SaveState() ([]byte, error) {
	blob, err := json.Marshal(teamState{Transcript: t.transcript, Next: t.next})
	if err != nil {
		return nil, fmt.Errorf("saving team state: %w", err)
	}
	return blob, nil
}

// LoadState restores a continuation point produced by SaveState. Must be
// called before RunStream. The next turn index is clamped to the current
// participant count so a roster change between runs cannot panic.
func (t *RoundRobin) LoadState(blob []byte) error {
	var st teamState
	if err := json.Unmarshal(blob, &st); err != nil {
		return fmt.Errorf("loading team state: %w", err)
	}
	t.transcript = st.Transcript
	t.next = st.Next
	if len(t.participants) > 0 {
		t.next = st.Next % len(t.participants)
	}
	return nil
}
