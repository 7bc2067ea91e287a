// Package memory backs the remember/recall tool pair with a small
// deduped, capped journal persisted at <run_dir>/memory.json.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/hatsuki-dev/vispanel/internal/util"
)

// maxEntries bounds the journal so recall() output stays a short, readable
// bulleted list instead of growing without limit across a long run.
const maxEntries = 20

// emptySentinel is what Recall returns before anything has been remembered,
// matching the reference tool's own placeholder text.
const emptySentinel = "(no memories yet)"

// Entry is one remembered note, tagged with a sortable id for diagnostics.
type Entry struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Store is a mutex-guarded, file-backed remember/recall journal. One Store
// serves one run directory.
type Store struct {
	path string

	mu      sync.Mutex
	entries []Entry
}

// Open loads path (if present) into memory; a missing file starts empty.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read memory journal: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("parse memory journal: %w", err)
	}
	return s, nil
}

// Remember normalizes text (NFKC, so visually identical Unicode strings
// dedupe), appends it if it is not already present anywhere in the
// journal, evicts the oldest entry past the cap, and persists the journal.
func (s *Store) Remember(text string) error {
	normalized := util.NormalizeText(text)
	if normalized == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.Text == normalized {
			return nil
		}
	}

	s.entries = append(s.entries, Entry{ID: util.NewULID(), Text: normalized})
	if len(s.entries) > maxEntries {
		s.entries = s.entries[len(s.entries)-maxEntries:]
	}

	return util.WriteFileAtomic(s.path, mustMarshal(s.entries), 0o644)
}

// Recall formats the journal as a bulleted list, most recent last, or
// returns emptySentinel when nothing has been remembered.
func (s *Store) Recall() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		return emptySentinel
	}

	var b strings.Builder
	for _, e := range s.entries {
		b.WriteString("- ")
		b.WriteString(e.Text)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func mustMarshal(entries []Entry) []byte {
	if entries == nil {
		entries = []Entry{}
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		// entries is a plain []Entry of strings; MarshalIndent can only fail
		// on cyclic or unsupported types, neither of which applies here.
		panic(fmt.Sprintf("marshal memory journal: %v", err))
	}
	return b
}
