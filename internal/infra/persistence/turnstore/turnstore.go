// Package turnstore is the append-only on-disk log of turns plus a latest
// state snapshot, backed by the durability primitives in internal/infra/fs.
// It also keeps a bounded in-memory ring for SSE replay.
package turnstore

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	apphealth "github.com/hatsuki-dev/vispanel/internal/app/health"
	appstate "github.com/hatsuki-dev/vispanel/internal/app/state"
	"github.com/hatsuki-dev/vispanel/internal/domain/model"
	"github.com/hatsuki-dev/vispanel/internal/infra/fs"
)

// ringSize bounds how many recent turns are retained in memory for SSE
// replay; older turns are still on disk in turns.jsonl.
const ringSize = 256

// TurnStore is the single writer for a run's turns.jsonl and state.json.
// It is safe for concurrent read access (LastSeq, TotalTokens, Replay) while the
// EngineLoop is the sole caller of Append.
type TurnStore struct {
	mu     sync.RWMutex
	runDir string

	journal *os.File
	ring    []model.Turn
	ringPos int
	ringLen int

	lastSeq     int
	paused      bool
	lastError   string
	totalTokens int
}

// Open opens (creating if necessary) turns.jsonl under runDir for
// append-only writes and loads state.json if present.
func Open(runDir string) (*TurnStore, error) {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(runDir, "turns.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open turns.jsonl: %w", err)
	}

	ts := &TurnStore{
		runDir:  runDir,
		journal: f,
		ring:    make([]model.Turn, ringSize),
	}

	if st, err := appstate.LoadState(filepath.Join(runDir, "state.json")); err == nil {
		ts.lastSeq = st.LastSeq
		ts.paused = st.Paused
		ts.lastError = st.LastError
	}

	return ts, nil
}

// Close closes the underlying journal file.
func (ts *TurnStore) Close() error {
	return ts.journal.Close()
}

// NextSeq returns last_seq + 1 without allocating it; the caller commits
// the allocation by calling Append with that seq.
func (ts *TurnStore) NextSeq() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.lastSeq + 1
}

// LastSeq returns the highest seq persisted so far.
func (ts *TurnStore) LastSeq() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.lastSeq
}

// Paused reports the last-persisted pause flag.
func (ts *TurnStore) Paused() bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.paused
}

// LastError reports the last-persisted error string.
func (ts *TurnStore) LastError() string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.lastError
}

// Append writes turn to turns.jsonl (fsync'd before returning), decodes and
// saves annotatedImageB64 as turn_<seq:04d>.png when non-empty (stamping
// turn.AnnotatedRef with the resulting filename before it is marshaled),
// updates state.json atomically, and adds the turn to the in-memory replay
// ring. It rejects any seq that does not strictly increase. It returns the
// turn as actually persisted (with AnnotatedRef resolved to a filename), so
// callers broadcast the same shape that lands in turns.jsonl.
func (ts *TurnStore) Append(turn model.Turn, annotatedImageB64 string, paused bool) (model.Turn, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if turn.Seq <= ts.lastSeq {
		return model.Turn{}, fmt.Errorf("%s: seq %d is not greater than last persisted seq %d", model.ErrPersistFailure, turn.Seq, ts.lastSeq)
	}

	if annotatedImageB64 != "" {
		name, err := ts.writeAnnotatedPNG(turn.Seq, annotatedImageB64)
		if err != nil {
			return model.Turn{}, fmt.Errorf("%s: %w", model.ErrPersistFailure, err)
		}
		turn.AnnotatedRef = name
	}

	line, err := json.Marshal(turn)
	if err != nil {
		return model.Turn{}, fmt.Errorf("%s: marshal turn: %w", model.ErrPersistFailure, err)
	}
	line = append(line, '\n')

	if _, err := ts.journal.Write(line); err != nil {
		return model.Turn{}, fmt.Errorf("%s: append turns.jsonl: %w", model.ErrPersistFailure, err)
	}
	if err := fs.FsyncFile(ts.journal); err != nil {
		return model.Turn{}, fmt.Errorf("%s: fsync turns.jsonl: %w", model.ErrPersistFailure, err)
	}

	errMsg := ""
	if len(turn.Errors) > 0 {
		errMsg = turn.Errors[len(turn.Errors)-1]
	}

	st := &appstate.RunState{
		Paused:    paused,
		RunDir:    ts.runDir,
		LastSeq:   turn.Seq,
		LastError: errMsg,
	}
	if err := appstate.SaveStateAtomic(st, filepath.Join(ts.runDir, "state.json")); err != nil {
		return model.Turn{}, fmt.Errorf("%s: %w", model.ErrPersistFailure, err)
	}

	ts.lastSeq = turn.Seq
	ts.paused = paused
	ts.lastError = errMsg
	ts.totalTokens += turn.Usage.PromptTokens + turn.Usage.CompletionTokens

	h := &apphealth.Health{
		Ok:          errMsg == "",
		Paused:      paused,
		RunDir:      ts.runDir,
		LastSeq:     ts.lastSeq,
		TotalTokens: ts.totalTokens,
	}
	if err := apphealth.WriteHealthAtomic(h, filepath.Join(ts.runDir, "health.json")); err != nil {
		return model.Turn{}, fmt.Errorf("%s: %w", model.ErrPersistFailure, err)
	}

	ts.ring[ts.ringPos] = turn
	ts.ringPos = (ts.ringPos + 1) % ringSize
	if ts.ringLen < ringSize {
		ts.ringLen++
	}

	return turn, nil
}

// TotalTokens returns the running prompt+completion token total accumulated
// by this process since Open, for the /health total_tokens figure. A
// restart resets this counter; internal/infra/persistence/sqlite's RunIndex
// carries the durable per-run figure across restarts.
func (ts *TurnStore) TotalTokens() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.totalTokens
}

// writeAnnotatedPNG decodes the base64 image, writes turn_<seq:04d>.png, and
// returns that filename for storage as the turn's AnnotatedRef.
func (ts *TurnStore) writeAnnotatedPNG(seq int, imageB64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(imageB64)
	if err != nil {
		return "", fmt.Errorf("decode annotated image for seq %d: %w", seq, err)
	}
	name := fmt.Sprintf("turn_%04d.png", seq)
	if err := fs.WriteFileSync(filepath.Join(ts.runDir, name), data, 0o644); err != nil {
		return "", err
	}
	return name, nil
}

// Replay returns up to n of the most recently appended turns, in seq order.
func (ts *TurnStore) Replay(n int) []model.Turn {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	if n > ts.ringLen {
		n = ts.ringLen
	}
	out := make([]model.Turn, 0, n)
	start := (ts.ringPos - n + ringSize) % ringSize
	for i := 0; i < n; i++ {
		out = append(out, ts.ring[(start+i)%ringSize])
	}
	return out
}
