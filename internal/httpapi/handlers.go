package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hatsuki-dev/vispanel/internal/app/health"
	"github.com/hatsuki-dev/vispanel/internal/domain/gate"
	"github.com/hatsuki-dev/vispanel/internal/domain/model"
	"github.com/hatsuki-dev/vispanel/internal/policy"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(s.panelHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := health.Health{
		Ok:          true,
		Paused:      s.loop.Paused(),
		RunDir:      s.runDir,
		Ts:          time.Now().UTC().Format(time.RFC3339Nano),
		LastSeq:     s.store.LastSeq(),
		TotalTokens: s.store.TotalTokens(),
	}
	writeJSON(w, http.StatusOK, h)
}

// renderJobView is the wire shape of a pending render job, per spec.md §6.
type renderJobView struct {
	Waiting  bool           `json:"waiting,omitempty"`
	Seq      int            `json:"seq,omitempty"`
	ImageB64 string         `json:"image_b64,omitempty"`
	Actions  []model.Action `json:"actions,omitempty"`
}

func (s *Server) handleRenderJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.gate.Peek()
	if !ok {
		writeJSON(w, http.StatusOK, renderJobView{Waiting: true})
		return
	}
	writeJSON(w, http.StatusOK, renderJobView{Seq: job.Seq, ImageB64: job.RawImageB64, Actions: job.Actions})
}

type annotatedRequest struct {
	Seq      int    `json:"seq"`
	ImageB64 string `json:"image_b64"`
}

// minAnnotatedImageLen matches the reference proxy's floor for a plausible
// PNG payload; anything shorter is rejected before it ever reaches the gate.
const minAnnotatedImageLen = 100

func (s *Server) handleAnnotated(w http.ResponseWriter, r *http.Request) {
	var body annotatedRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json"})
		return
	}

	if pending, ok := s.gate.Peek(); !ok {
		writeJSON(w, http.StatusConflict, map[string]any{"ok": false, "error": "no outstanding job"})
		return
	} else if pending.Seq != body.Seq {
		writeJSON(w, http.StatusConflict, map[string]any{"ok": false, "error": "seq mismatch"})
		return
	}

	if len(body.ImageB64) < minAnnotatedImageLen {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "annotated image too small/empty"})
		return
	}

	switch s.gate.Deliver(body.Seq, body.ImageB64) {
	case gate.DeliverOK:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case gate.DeliverStale:
		writeJSON(w, http.StatusConflict, map[string]any{"ok": false, "error": "seq mismatch"})
	case gate.DeliverNoPending:
		writeJSON(w, http.StatusConflict, map[string]any{"ok": false, "error": "no outstanding job"})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "annotated image too small/empty"})
	}
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.loop.Pause()
	writeJSON(w, http.StatusOK, map[string]any{"paused": s.loop.Paused()})
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	s.loop.Unpause()
	writeJSON(w, http.StatusOK, map[string]any{"paused": s.loop.Paused()})
}

func (s *Server) handleGetAllowedTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.policy.Snapshot())
}

func (s *Server) handleSetAllowedTools(w http.ResponseWriter, r *http.Request) {
	var requested []string
	if err := json.NewDecoder(r.Body).Decode(&requested); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "expected json array"})
		return
	}

	known := make(map[string]bool, len(policy.DefaultTools))
	for _, t := range policy.DefaultTools {
		known[t] = true
	}
	allowed := make([]string, 0, len(requested))
	for _, t := range requested {
		if known[t] {
			allowed = append(allowed, t)
		}
	}

	if err := s.policy.Replace(allowed); err != nil {
		if s.logger != nil {
			s.logger.Error("allowed_tools replace failed", zap.Error(err))
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "persist failure"})
		return
	}
	writeJSON(w, http.StatusOK, allowed)
}

type debugExecuteRequest struct {
	Raw string `json:"raw"`
}

type debugExecuteResponse struct {
	Executed    []model.Action        `json:"executed"`
	Malformed   []model.MalformedCall `json:"malformed"`
	RawImageB64 string                `json:"raw_image_b64"`
	Error       string                `json:"error,omitempty"`
}

// handleDebugExecute invokes the executor directly with debug=true. It
// never advances seq and never publishes to the gate: it exists purely to
// let the panel probe the executor's parsing without disturbing a run.
func (s *Server) handleDebugExecute(w http.ResponseWriter, r *http.Request) {
	var body debugExecuteRequest
	_ = json.NewDecoder(r.Body).Decode(&body)

	req := model.ExecutorRequest{StoryText: body.Raw, AllowedTools: s.policy.Snapshot(), Debug: true}
	resp, err := s.executor.Run(r.Context(), req, s.executeTimeout)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, debugExecuteResponse{Executed: []model.Action{}, Malformed: []model.MalformedCall{}, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, debugExecuteResponse{Executed: resp.Executed, Malformed: resp.Malformed, RawImageB64: resp.RawImageB64, Error: resp.Error})
}
