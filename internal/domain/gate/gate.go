// Package gate implements the single-slot rendezvous that forces the
// EngineLoop to block until a browser client has annotated the current
// render job.
package gate

import (
	"context"
	"sync"

	"github.com/hatsuki-dev/vispanel/internal/domain/model"
)

// DeliverResult reports the outcome of a POST /annotated call.
type DeliverResult int

const (
	DeliverOK DeliverResult = iota
	DeliverStale
	DeliverNoPending
	DeliverBadPayload
)

// AwaitResult reports why RenderJobGate.Await returned.
type AwaitResult int

const (
	AwaitDelivered AwaitResult = iota
	AwaitTimeout
	AwaitCancelled
)

// RenderJobGate is a single-slot rendezvous: it holds at most one pending
// render job and at most one delivered annotated image for that job's seq.
// The EngineLoop is the sole caller of Publish and Await; HTTP handlers are
// the sole callers of Peek and Deliver.
type RenderJobGate struct {
	mu sync.Mutex

	pending  *model.RenderJob
	image    string
	hasImage bool

	// wake is closed and replaced every time state changes so that any
	// goroutine blocked in Await wakes up and re-checks its condition.
	wake chan struct{}
}

// New returns an idle gate with no pending job.
func New() *RenderJobGate {
	return &RenderJobGate{wake: make(chan struct{})}
}

// Publish installs job as the current pending render job, clearing any
// previously delivered (but unconsumed) annotated image. It never blocks.
func (g *RenderJobGate) Publish(job model.RenderJob) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pending = &job
	g.hasImage = false
	g.image = ""
	g.notifyLocked()
}

// Peek returns the current pending job, if any. It is non-destructive.
func (g *RenderJobGate) Peek() (model.RenderJob, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil {
		return model.RenderJob{}, false
	}
	return *g.pending, true
}

// Deliver accepts an annotated image for seq if a job with that exact seq
// is pending. Re-delivery of an already-accepted seq is a no-op DeliverOK.
func (g *RenderJobGate) Deliver(seq int, imageB64 string) DeliverResult {
	if len(imageB64) == 0 {
		return DeliverBadPayload
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil {
		return DeliverNoPending
	}
	if g.pending.Seq != seq {
		return DeliverStale
	}
	if g.hasImage {
		// Idempotent re-delivery of the seq we already accepted.
		return DeliverOK
	}

	g.image = imageB64
	g.hasImage = true
	g.notifyLocked()
	return DeliverOK
}

// Await blocks until an accepted image for seq exists, ctx is cancelled, or
// timeout is exceeded via ctx's deadline. On successful return the slot is
// cleared so a subsequent job may be published.
func (g *RenderJobGate) Await(ctx context.Context, seq int) (string, AwaitResult) {
	for {
		g.mu.Lock()
		if g.pending != nil && g.pending.Seq == seq && g.hasImage {
			img := g.image
			g.pending = nil
			g.hasImage = false
			g.image = ""
			g.mu.Unlock()
			return img, AwaitDelivered
		}
		wake := g.wake
		g.mu.Unlock()

		select {
		case <-wake:
			continue
		case <-ctx.Done():
			return "", awaitCancelReason(ctx)
		}
	}
}

func awaitCancelReason(ctx context.Context) AwaitResult {
	if ctx.Err() == context.DeadlineExceeded {
		return AwaitTimeout
	}
	return AwaitCancelled
}

// notifyLocked wakes every goroutine parked in Await. Caller must hold mu.
func (g *RenderJobGate) notifyLocked() {
	close(g.wake)
	g.wake = make(chan struct{})
}
