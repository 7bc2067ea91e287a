// Package engine implements EngineLoop: the per-turn state machine that
// sequences executor invocation, render-job publish, the annotation gate,
// the VLM call, persistence, and broadcast, honoring pause and
// cancellation (spec.md §4.2).
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hatsuki-dev/vispanel/internal/domain/gate"
	"github.com/hatsuki-dev/vispanel/internal/domain/memory"
	"github.com/hatsuki-dev/vispanel/internal/domain/model"
	"github.com/hatsuki-dev/vispanel/internal/infra/persistence/turnstore"
	"github.com/hatsuki-dev/vispanel/internal/policy"
)

// Default timeouts and pacing, overridable per-Loop from Config.
const (
	DefaultExecuteTimeout    = 20 * time.Second
	DefaultAnnotationTimeout = 30 * time.Second
	DefaultVLMTimeout        = 90 * time.Second
	DefaultInterTurnDelay    = 1500 * time.Millisecond

	pausePollInterval  = 50 * time.Millisecond
	minWellFormedCalls = 2
	vlmRetryAttempts   = 2
)

// InitialStory seeds the very first turn of a run.
const InitialStory = "hi"

// executorRunner is the subset of *adapter/executor.Adapter the loop needs.
type executorRunner interface {
	Run(ctx context.Context, req model.ExecutorRequest, timeout time.Duration) (*model.ExecutorResponse, error)
}

// vlmRunner is the subset of *adapter/vlm.Adapter the loop needs.
type vlmRunner interface {
	Run(ctx context.Context, req model.VLMRequest, timeout time.Duration) (*model.VLMResponse, error)
}

// Broadcaster publishes a persisted turn to SSE subscribers.
type Broadcaster interface {
	Broadcast(turn model.Turn)
}

// Loop is the single-writer turn state machine. One Loop drives one run.
type Loop struct {
	Executor executorRunner
	VLM      vlmRunner
	Gate     *gate.RenderJobGate
	Store    *turnstore.TurnStore
	Policy   *policy.Policy
	Broker   Broadcaster
	Memory   *memory.Store
	Logger   *zap.Logger

	// SystemPromptTemplate is the raw system_prompt.yaml content, still
	// carrying its {tools}/{coord_max} placeholders. Left empty, the VLM
	// adapter falls back to whatever default its own binary embeds.
	SystemPromptTemplate string

	ExecuteTimeout    time.Duration
	AnnotationTimeout time.Duration
	VLMTimeout        time.Duration
	InterTurnDelay    time.Duration

	paused atomic.Bool
}

// New builds a Loop with the default timeouts and pacing; callers override
// the exported duration fields after New returns.
func New(executor executorRunner, vlmAdapter vlmRunner, g *gate.RenderJobGate, store *turnstore.TurnStore, pol *policy.Policy, broker Broadcaster, logger *zap.Logger) *Loop {
	return &Loop{
		Executor:          executor,
		VLM:               vlmAdapter,
		Gate:              g,
		Store:             store,
		Policy:            pol,
		Broker:            broker,
		Logger:            logger,
		ExecuteTimeout:    DefaultExecuteTimeout,
		AnnotationTimeout: DefaultAnnotationTimeout,
		VLMTimeout:        DefaultVLMTimeout,
		InterTurnDelay:    DefaultInterTurnDelay,
	}
}

// Pause sets the pause flag; the in-flight turn always completes first.
func (l *Loop) Pause() {
	if !l.paused.Swap(true) && l.Logger != nil {
		l.Logger.Info("engine paused")
	}
}

// Unpause clears the pause flag, waking the loop at its next poll.
func (l *Loop) Unpause() {
	if l.paused.Swap(false) && l.Logger != nil {
		l.Logger.Info("engine unpaused")
	}
}

// Paused reports the current pause flag.
func (l *Loop) Paused() bool {
	return l.paused.Load()
}

// Run drives turns until ctx is cancelled, returning ctx.Err(). Pause is
// honored only at turn boundaries; a turn already in flight always
// completes (or errors) before the loop checks pause again.
func (l *Loop) Run(ctx context.Context, initialStory string) error {
	story := initialStory
	for {
		if err := l.waitUntilUnpaused(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		story = l.runTurn(ctx, story)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.InterTurnDelay):
		}
	}
}

func (l *Loop) waitUntilUnpaused(ctx context.Context) error {
	for l.paused.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pausePollInterval):
		}
	}
	return nil
}

// runTurn executes exactly one turn and returns the story to feed the next
// turn: the composed VLM plan on success, or the same story unchanged on
// any error path (matching the retry-with-same-input behavior of the
// reference implementation).
func (l *Loop) runTurn(ctx context.Context, story string) string {
	seq := l.Store.NextSeq()
	tsStart := time.Now().UTC()
	turn := model.Turn{Seq: seq, StoryIn: story, TsStart: formatTime(tsStart)}
	tools := l.Policy.Snapshot()

	if l.Logger != nil {
		l.Logger.Debug("turn started", zap.Int("seq", seq))
	}

	execStart := time.Now()
	execResp, err := l.Executor.Run(ctx, model.ExecutorRequest{StoryText: story, AllowedTools: tools}, l.ExecuteTimeout)
	execMs := time.Since(execStart).Milliseconds()
	if err != nil {
		l.persistError(turn, tsStart, model.Latency{ExecMs: execMs}, classifyErr(err, model.ErrExecutorCrash))
		return story
	}

	turn.Executed = actionsToToolCalls(execResp.Executed)
	if len(turn.Executed) == 0 {
		l.persistError(turn, tsStart, model.Latency{ExecMs: execMs}, string(model.ErrExecutorMalformedOut))
		return story
	}
	for _, m := range execResp.Malformed {
		turn.Warnings = append(turn.Warnings, fmt.Sprintf("parse_warning: %s (%s)", m.Text, m.Reason))
	}

	vlmStory := l.applyMemoryCalls(turn.Executed, story)

	l.Gate.Publish(model.RenderJob{Seq: seq, RawImageB64: execResp.RawImageB64, Actions: execResp.Executed})

	annotateStart := time.Now()
	awaitCtx, cancel := context.WithTimeout(ctx, l.AnnotationTimeout)
	imageB64, res := l.Gate.Await(awaitCtx, seq)
	cancel()
	annotateMs := time.Since(annotateStart).Milliseconds()

	if res != gate.AwaitDelivered {
		l.persistError(turn, tsStart, model.Latency{ExecMs: execMs, AnnotateMs: annotateMs}, string(model.ErrAnnotationTimeout))
		return story
	}

	systemPrompt := ""
	if l.SystemPromptTemplate != "" {
		systemPrompt = ExpandSystemPrompt(l.SystemPromptTemplate, tools)
	}

	vlmStart := time.Now()
	vlmResp, vlmErr := l.runVLMWithRetry(ctx, vlmStory, imageB64, systemPrompt)
	vlmMs := time.Since(vlmStart).Milliseconds()
	if vlmErr != nil {
		l.persistError(turn, tsStart, model.Latency{ExecMs: execMs, AnnotateMs: annotateMs, VLMMs: vlmMs}, classifyErr(vlmErr, model.ErrVLMEmpty))
		return story
	}

	calls := parseVLMCalls(vlmResp.VLMText, tools)
	if len(calls) < minWellFormedCalls {
		calls = padCalls(calls, l.Policy.DefaultUnderflowActions())
		turn.Warnings = append(turn.Warnings, string(model.ErrToolUnderflow))
	}
	nextStory := composeStory(calls)

	turn.VLMText = vlmResp.VLMText
	turn.ToolCallsOut = calls
	turn.Usage = vlmResp.Usage

	tsEnd := time.Now().UTC()
	turn.TsEnd = formatTime(tsEnd)
	turn.Latency = model.Latency{ExecMs: execMs, AnnotateMs: annotateMs, VLMMs: vlmMs, TotalMs: tsEnd.Sub(tsStart).Milliseconds()}

	persisted, err := l.Store.Append(turn, imageB64, l.Paused())
	if err != nil {
		if l.Logger != nil {
			l.Logger.Error("persist failure", zap.Int("seq", seq), zap.Error(err))
		}
		l.Pause()
		return story
	}

	if l.Broker != nil {
		l.Broker.Broadcast(persisted)
	}
	return nextStory
}

// persistError finalizes and persists an error turn, pauses the loop, and
// broadcasts the result. An append failure here is logged but otherwise
// swallowed: the loop is already paused and there is nothing further to
// degrade to.
func (l *Loop) persistError(turn model.Turn, tsStart time.Time, latency model.Latency, errKind string) {
	l.Pause()

	tsEnd := time.Now().UTC()
	turn.TsEnd = formatTime(tsEnd)
	latency.TotalMs = tsEnd.Sub(tsStart).Milliseconds()
	turn.Latency = latency
	turn.Errors = append(turn.Errors, errKind)

	if l.Logger != nil {
		l.Logger.Warn("turn errored", zap.Int("seq", turn.Seq), zap.String("kind", errKind))
	}

	persisted, err := l.Store.Append(turn, "", true)
	if err != nil {
		if l.Logger != nil {
			l.Logger.Error("failed to persist error turn", zap.Int("seq", turn.Seq), zap.Error(err))
		}
		return
	}
	if l.Broker != nil {
		l.Broker.Broadcast(persisted)
	}
}

// runVLMWithRetry calls the VLM adapter once, and once more if the first
// call fails or returns an empty vlm_text, per spec.md §4.2 step 6.
func (l *Loop) runVLMWithRetry(ctx context.Context, story, imageB64, systemPrompt string) (*model.VLMResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= vlmRetryAttempts; attempt++ {
		resp, err := l.VLM.Run(ctx, model.VLMRequest{StoryText: story, ImageB64: imageB64, SystemPrompt: systemPrompt}, l.VLMTimeout)
		if err != nil {
			lastErr = err
			if l.Logger != nil {
				l.Logger.Warn("vlm call failed", zap.Int("attempt", attempt), zap.Error(err))
			}
			continue
		}
		if strings.TrimSpace(resp.VLMText) != "" {
			return resp, nil
		}
		lastErr = fmt.Errorf("%s: empty vlm_text on attempt %d", model.ErrVLMEmpty, attempt)
		if l.Logger != nil {
			l.Logger.Warn("vlm returned empty text", zap.Int("attempt", attempt))
		}
	}
	return nil, lastErr
}

// classifyErr recovers the leading ErrKind token that adapter errors are
// wrapped with (see adapter/executor and adapter/vlm), falling back to
// fallback when the error carries no recognizable prefix.
func classifyErr(err error, fallback model.ErrKind) string {
	if err == nil {
		return string(fallback)
	}
	msg := err.Error()
	idx := strings.Index(msg, ":")
	if idx <= 0 {
		return string(fallback)
	}
	switch model.ErrKind(msg[:idx]) {
	case model.ErrExecutorTimeout, model.ErrExecutorCrash, model.ErrExecutorMalformedOut,
		model.ErrVLMTimeout, model.ErrVLMCrash, model.ErrVLMEmpty:
		return msg[:idx]
	default:
		return string(fallback)
	}
}

// applyMemoryCalls intercepts remember/recall tool calls the executor
// reported as executed. A remember call persists its argument; a recall
// call appends the current journal to the story text handed to the VLM for
// this same turn, so the plan step sees what was recalled.
func (l *Loop) applyMemoryCalls(calls []model.ToolCall, story string) string {
	if l.Memory == nil {
		return story
	}
	for _, c := range calls {
		switch c.Name {
		case "remember":
			if len(c.Args) == 0 {
				continue
			}
			if err := l.Memory.Remember(c.Args[0]); err != nil && l.Logger != nil {
				l.Logger.Warn("remember failed", zap.Error(err))
			}
		case "recall":
			story = story + "\n\nRecalled notes:\n" + l.Memory.Recall()
		}
	}
	return story
}

func actionsToToolCalls(actions []model.Action) []model.ToolCall {
	out := make([]model.ToolCall, len(actions))
	for i, a := range actions {
		out[i] = model.ToolCall{Name: a.Name, Args: a.Args, Coords: a.Coords}
	}
	return out
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
