package state

import (
	"encoding/json"
	"fmt"

	"github.com/hatsuki-dev/vispanel/internal/util"
)

// SaveStateAtomic saves state atomically to path.
func SaveStateAtomic(st *RunState, path string) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := util.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	return nil
}
