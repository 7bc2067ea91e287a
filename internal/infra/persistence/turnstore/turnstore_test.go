package turnstore

import (
	"bufio"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/hatsuki-dev/vispanel/internal/domain/model"
)

func TestOpenCreatesEmptyStore(t *testing.T) {
	dir := t.TempDir()

	ts, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer ts.Close()

	if ts.LastSeq() != 0 {
		t.Fatalf("LastSeq() = %d, want 0", ts.LastSeq())
	}
	if _, err := os.Stat(filepath.Join(dir, "turns.jsonl")); err != nil {
		t.Fatalf("turns.jsonl not created: %v", err)
	}
}

func TestAppendPersistsTurnAndState(t *testing.T) {
	dir := t.TempDir()

	ts, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer ts.Close()

	turn := model.Turn{Seq: 1, StoryIn: "click(1,2)"}
	if _, err := ts.Append(turn, "", false); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if ts.LastSeq() != 1 {
		t.Fatalf("LastSeq() = %d, want 1", ts.LastSeq())
	}

	if _, err := os.Stat(filepath.Join(dir, "state.json")); err != nil {
		t.Fatalf("state.json not created: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "turns.jsonl"))
	if err != nil {
		t.Fatalf("open turns.jsonl: %v", err)
	}
	defer f.Close()

	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
	}
	if lines != 1 {
		t.Fatalf("turns.jsonl has %d lines, want 1", lines)
	}
}

func TestAppendRejectsNonIncreasingSeq(t *testing.T) {
	dir := t.TempDir()

	ts, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer ts.Close()

	if _, err := ts.Append(model.Turn{Seq: 5}, "", false); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := ts.Append(model.Turn{Seq: 5}, "", false); err == nil {
		t.Fatal("Append() error = nil, want error for repeated seq")
	}
	if _, err := ts.Append(model.Turn{Seq: 3}, "", false); err == nil {
		t.Fatal("Append() error = nil, want error for decreasing seq")
	}
}

func TestAppendWritesAnnotatedPNGAndStampsRef(t *testing.T) {
	dir := t.TempDir()

	ts, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer ts.Close()

	img := base64.StdEncoding.EncodeToString([]byte("fake-png-bytes"))
	if _, err := ts.Append(model.Turn{Seq: 1}, img, false); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "turn_0001.png"))
	if err != nil {
		t.Fatalf("read turn_0001.png: %v", err)
	}
	if string(data) != "fake-png-bytes" {
		t.Fatalf("turn_0001.png content = %q, want fake-png-bytes", data)
	}

	replayed := ts.Replay(1)
	if len(replayed) != 1 || replayed[0].AnnotatedRef != "turn_0001.png" {
		t.Fatalf("Replay() = %+v, want AnnotatedRef turn_0001.png", replayed)
	}
}

func TestReplayReturnsMostRecentInSeqOrder(t *testing.T) {
	dir := t.TempDir()

	ts, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer ts.Close()

	for seq := 1; seq <= 5; seq++ {
		if _, err := ts.Append(model.Turn{Seq: seq}, "", false); err != nil {
			t.Fatalf("Append(%d) error = %v", seq, err)
		}
	}

	got := ts.Replay(3)
	if len(got) != 3 {
		t.Fatalf("Replay(3) returned %d turns, want 3", len(got))
	}
	for i, want := range []int{3, 4, 5} {
		if got[i].Seq != want {
			t.Fatalf("Replay(3)[%d].Seq = %d, want %d", i, got[i].Seq, want)
		}
	}
}

func TestReplayCapsAtAvailableTurns(t *testing.T) {
	dir := t.TempDir()

	ts, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer ts.Close()

	if _, err := ts.Append(model.Turn{Seq: 1}, "", false); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got := ts.Replay(50)
	if len(got) != 1 {
		t.Fatalf("Replay(50) returned %d turns, want 1", len(got))
	}
}

func TestTotalTokensAccumulatesAcrossAppends(t *testing.T) {
	dir := t.TempDir()

	ts, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer ts.Close()

	turns := []model.Turn{
		{Seq: 1, Usage: model.Usage{PromptTokens: 10, CompletionTokens: 5}},
		{Seq: 2, Usage: model.Usage{PromptTokens: 3, CompletionTokens: 2}},
	}
	for _, turn := range turns {
		if _, err := ts.Append(turn, "", false); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	if got := ts.TotalTokens(); got != 20 {
		t.Fatalf("TotalTokens() = %d, want 20", got)
	}
}

func TestOpenResumesFromExistingState(t *testing.T) {
	dir := t.TempDir()

	ts, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := ts.Append(model.Turn{Seq: 7}, "", true); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	ts.Close()

	ts2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer ts2.Close()

	if ts2.LastSeq() != 7 {
		t.Fatalf("LastSeq() = %d, want 7", ts2.LastSeq())
	}
	if !ts2.Paused() {
		t.Fatal("Paused() = false, want true")
	}
}
