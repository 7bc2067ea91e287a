// Package sse fans out Turn events to concurrent /events subscribers over
// Server-Sent Events, tolerating slow or disconnected clients without
// blocking the publisher.
package sse

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hatsuki-dev/vispanel/internal/domain/model"
)

// QueueSize bounds each subscriber's backlog. Once full, Broadcast drops
// the oldest queued message before enqueuing the new one.
const QueueSize = 64

// HeartbeatInterval is how often idle subscribers receive a keep-alive
// comment line, to defeat proxy idle-timeouts.
const HeartbeatInterval = 15 * time.Second

// turnEvent is the wire shape of one SSE data line, per spec.md §6.
type turnEvent struct {
	Seq             int             `json:"seq"`
	TsStart         string          `json:"ts_start"`
	TsEnd           string          `json:"ts_end"`
	StoryIn         string          `json:"story_in"`
	Executed        []model.ToolCall `json:"executed"`
	ToolCallsOut    []model.ToolCall `json:"tool_calls_out"`
	VLMText         string          `json:"vlm_text"`
	Usage           model.Usage     `json:"usage"`
	LatencyMs       model.Latency   `json:"latency_ms"`
	Errors          []string        `json:"errors,omitempty"`
	AnnotatedRef    string          `json:"annotated_image_ref,omitempty"`
}

func toEvent(t model.Turn) turnEvent {
	return turnEvent{
		Seq:          t.Seq,
		TsStart:      t.TsStart,
		TsEnd:        t.TsEnd,
		StoryIn:      t.StoryIn,
		Executed:     t.Executed,
		ToolCallsOut: t.ToolCallsOut,
		VLMText:      t.VLMText,
		Usage:        t.Usage,
		LatencyMs:    t.Latency,
		Errors:       t.Errors,
		AnnotatedRef: t.AnnotatedRef,
	}
}

// subscriber is one connected /events client.
type subscriber struct {
	id uint64
	ch chan []byte
}

// Broker fans a Turn out to every subscribed channel. It is safe for
// concurrent use by many HTTP handler goroutines and one EngineLoop.
type Broker struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
	logger *zap.Logger
}

// New builds an empty Broker.
func New(logger *zap.Logger) *Broker {
	return &Broker{subs: make(map[uint64]*subscriber), logger: logger}
}

// Subscribe registers a new subscriber and returns its channel plus an
// Unsubscribe func the caller must invoke when the client disconnects.
func (b *Broker) Subscribe() (<-chan []byte, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscriber{id: id, ch: make(chan []byte, QueueSize)}
	b.subs[id] = sub

	return sub.ch, func() { b.unsubscribe(id) }
}

func (b *Broker) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[id]; ok {
		close(sub.ch)
		delete(b.subs, id)
	}
}

// Broadcast encodes turn as one SSE `data:` frame and enqueues it on every
// subscriber, dropping the oldest queued frame for any subscriber whose
// queue is full rather than blocking.
func (b *Broker) Broadcast(turn model.Turn) {
	payload, err := json.Marshal(toEvent(turn))
	if err != nil {
		if b.logger != nil {
			b.logger.Error("sse: marshal turn event failed", zap.Error(err), zap.Int("seq", turn.Seq))
		}
		return
	}
	frame := formatFrame(payload)

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		enqueue(sub.ch, frame)
	}
}

// enqueue performs a non-blocking send, dropping the oldest buffered frame
// to make room when the subscriber's channel is full.
func enqueue(ch chan []byte, frame []byte) {
	select {
	case ch <- frame:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- frame:
	default:
	}
}

// formatFrame wraps a JSON payload as a single SSE data frame.
func formatFrame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+8)
	out = append(out, "data: "...)
	out = append(out, payload...)
	out = append(out, '\n', '\n')
	return out
}

// Heartbeat returns the keep-alive comment line sent when a subscriber has
// been idle for HeartbeatInterval.
func Heartbeat() []byte {
	return []byte(": keep-alive\n\n")
}

// EncodeFrame renders turn as the same SSE data frame Broadcast sends, for
// writing replay catch-up turns directly to a new subscriber's connection
// before it starts receiving live broadcasts.
func EncodeFrame(turn model.Turn) ([]byte, error) {
	payload, err := json.Marshal(toEvent(turn))
	if err != nil {
		return nil, err
	}
	return formatFrame(payload), nil
}

// ConnectedFrame is the sentinel frame sent immediately on subscribe so the
// client can distinguish "connected, no turns yet" from a stalled proxy.
func ConnectedFrame() []byte {
	return []byte("data: {\"type\":\"connected\"}\n\n")
}
