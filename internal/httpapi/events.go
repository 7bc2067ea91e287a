package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hatsuki-dev/vispanel/internal/sse"
)

// handleEvents streams turns as Server-Sent Events. A `replay=<N>` query
// parameter catches a newly-connected client up on the last N turns before
// it starts receiving live broadcasts, per spec.md §6.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(sse.ConnectedFrame()); err != nil {
		return
	}
	flusher.Flush()

	if n := replayCount(r); n > 0 {
		for _, turn := range s.store.Replay(n) {
			frame, err := sse.EncodeFrame(turn)
			if err != nil {
				continue
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
		}
		flusher.Flush()
	}

	ch, unsubscribe := s.broker.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(sse.HeartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := w.Write(sse.Heartbeat()); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func replayCount(r *http.Request) int {
	raw := r.URL.Query().Get("replay")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
