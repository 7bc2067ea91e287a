package state

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
)

// RunState represents the state.json structure persisted after every turn.
type RunState struct {
	Paused    bool   `json:"paused"`
	RunDir    string `json:"run_dir"`
	LastSeq   int    `json:"last_seq"`
	LastError string `json:"last_error,omitempty"`
}

// LoadState loads and normalizes state from the given path.
func LoadState(path string) (*RunState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	// Parse into raw map first for normalization
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	st := &RunState{
		Paused:  false,
		LastSeq: 0,
	}

	if p, ok := raw["paused"].(bool); ok {
		st.Paused = p
	}
	if rd, ok := raw["run_dir"].(string); ok {
		st.RunDir = rd
	}
	if s, ok := raw["last_seq"].(float64); ok {
		st.LastSeq = int(s)
	}
	if e, ok := raw["last_error"].(string); ok {
		st.LastError = e
	}

	if st.RunDir == "" {
		log.Printf("WARN: state.json missing run_dir")
	}

	return st, nil
}
