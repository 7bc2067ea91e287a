// Package executor wraps the action executor subprocess: it serializes a
// request to stdin, reads exactly one JSON response from stdout, and
// enforces a wall-clock timeout with SIGTERM-then-SIGKILL escalation.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hatsuki-dev/vispanel/internal/adapter/subprocess"
	"github.com/hatsuki-dev/vispanel/internal/domain/model"
)

// Adapter invokes the executor binary Bin, passing ConfigPath in every
// request.
type Adapter struct {
	Bin        string
	ConfigPath string
	Logger     *zap.Logger
}

// New builds an executor Adapter.
func New(bin, configPath string, logger *zap.Logger) *Adapter {
	return &Adapter{Bin: bin, ConfigPath: configPath, Logger: logger}
}

// Run invokes the executor subprocess with a hard timeout. It returns a
// typed error wrapping model.ErrExecutorTimeout / model.ErrExecutorCrash /
// model.ErrExecutorMalformedOut. Timeout and exit errors carry the stderr
// tail, malformed-output errors the stdout tail, and an error reported by
// the executor itself carries its message.
func (a *Adapter) Run(ctx context.Context, req model.ExecutorRequest, timeout time.Duration) (*model.ExecutorResponse, error) {
	req.ConfigPath = a.ConfigPath

	reqBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal executor request: %w", err)
	}

	res, err := subprocess.Run(ctx, a.Bin, reqBytes, timeout)
	if res.TimedOut {
		return nil, fmt.Errorf("%s: executor exceeded %s: %s", model.ErrExecutorTimeout, timeout, subprocess.Tail(res.Stderr))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: executor exited: %w: %s", model.ErrExecutorCrash, err, subprocess.Tail(res.Stderr))
	}

	var resp model.ExecutorResponse
	if err := json.Unmarshal(res.Stdout, &resp); err != nil {
		return nil, fmt.Errorf("%s: parse executor output: %w: %s", model.ErrExecutorMalformedOut, err, subprocess.Tail(res.Stdout))
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%s: executor reported error: %s", model.ErrExecutorCrash, resp.Error)
	}

	if a.Logger != nil {
		a.Logger.Debug("executor invocation complete",
			zap.Int("executed", len(resp.Executed)),
			zap.Int("malformed", len(resp.Malformed)))
	}

	return &resp, nil
}
