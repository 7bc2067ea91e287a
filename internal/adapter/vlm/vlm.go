// Package vlm wraps the VLM client subprocess: it serializes a request to
// stdin, reads exactly one JSON response from stdout, and enforces a
// wall-clock timeout with SIGTERM-then-SIGKILL escalation.
package vlm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hatsuki-dev/vispanel/internal/adapter/subprocess"
	"github.com/hatsuki-dev/vispanel/internal/domain/model"
)

// Adapter invokes the VLM client binary.
type Adapter struct {
	Bin    string
	Logger *zap.Logger
}

// New builds a VLM Adapter.
func New(bin string, logger *zap.Logger) *Adapter {
	return &Adapter{Bin: bin, Logger: logger}
}

// Run invokes the VLM client subprocess with a hard timeout.
func (a *Adapter) Run(ctx context.Context, req model.VLMRequest, timeout time.Duration) (*model.VLMResponse, error) {
	reqBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal vlm request: %w", err)
	}

	res, err := subprocess.Run(ctx, a.Bin, reqBytes, timeout)
	if res.TimedOut {
		return nil, fmt.Errorf("%s: vlm client exceeded %s: %s", model.ErrVLMTimeout, timeout, subprocess.Tail(res.Stderr))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: vlm client exited: %w: %s", model.ErrVLMCrash, err, subprocess.Tail(res.Stderr))
	}

	var resp model.VLMResponse
	if err := json.Unmarshal(res.Stdout, &resp); err != nil {
		return nil, fmt.Errorf("%s: parse vlm output: %w: %s", model.ErrVLMCrash, err, subprocess.Tail(res.Stdout))
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%s: vlm client reported error: %s", model.ErrVLMCrash, resp.Error)
	}

	if a.Logger != nil {
		a.Logger.Debug("vlm invocation complete",
			zap.Int("text_len", len(resp.VLMText)),
			zap.Int64("latency_ms", resp.LatencyMs))
	}

	return &resp, nil
}
