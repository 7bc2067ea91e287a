package health

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hatsuki-dev/vispanel/internal/util"
)

// Health represents the health.json snapshot structure, mirroring the
// /health endpoint payload for offline inspection by the doctor command.
type Health struct {
	Ok          bool   `json:"ok"`
	Paused      bool   `json:"paused"`
	RunDir      string `json:"run_dir"`
	Ts          string `json:"ts"`
	LastSeq     int    `json:"last_seq"`
	TotalTokens int    `json:"total_tokens"`
}

// WriteHealthAtomic writes health data atomically with current timestamp.
func WriteHealthAtomic(h *Health, path string) error {
	h.Ts = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to marshal health: %w", err)
	}

	if err := util.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write health: %w", err)
	}

	return nil
}
