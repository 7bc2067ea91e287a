// Package policy manages the persisted tool allowlist: an ordered set of
// tool names read by the executor adapter and mutable via HTTP.
package policy

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/spf13/afero"

	"github.com/hatsuki-dev/vispanel/internal/domain/model"
	filepersist "github.com/hatsuki-dev/vispanel/internal/infra/persistence/file"
)

// DefaultTools is the allowlist seeded into a fresh run directory.
var DefaultTools = []string{"click", "right_click", "double_click", "drag", "write", "remember", "recall"}

// defaultUnderflowActions is the padding applied to a VLM plan with fewer
// than the minimum well-formed calls (spec.md §4.2 step 7, §9 open
// question). It mirrors the reference implementation's fallback of two
// centered clicks (franz.py's click(500,500) pair) rather than pausing on
// underflow.
var defaultUnderflowActions = []model.ToolCall{
	{Name: "click", Args: []string{"500", "500"}},
	{Name: "click", Args: []string{"500", "500"}},
}

// Policy guards the tool allowlist with a mutex. Mutations go through
// Replace; readers take an immutable snapshot via Snapshot.
type Policy struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
	tools []string
}

// Load reads path if it exists, seeding it with DefaultTools otherwise.
func Load(fs afero.Fs, path string) (*Policy, error) {
	p := &Policy{fs: fs, path: path}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		p.tools = append([]string(nil), DefaultTools...)
		if writeErr := p.persistLocked(); writeErr != nil {
			return nil, fmt.Errorf("seed allowed_tools.json: %w", writeErr)
		}
		return p, nil
	}

	var tools []string
	if err := json.Unmarshal(data, &tools); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	p.tools = tools
	return p, nil
}

// Snapshot returns a copy of the current allowlist, safe to pass into an
// executor invocation without racing a concurrent Replace.
func (p *Policy) Snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, len(p.tools))
	copy(out, p.tools)
	return out
}

// Replace atomically replaces the allowlist and persists it to disk via
// write-temp-then-rename.
func (p *Policy) Replace(tools []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.tools
	p.tools = tools
	if err := p.persistLocked(); err != nil {
		p.tools = prev
		return err
	}
	return nil
}

// DefaultUnderflowActions returns the fallback actions padded onto an
// under-length VLM plan (spec.md §4.2 step 7).
func (p *Policy) DefaultUnderflowActions() []model.ToolCall {
	out := make([]model.ToolCall, len(defaultUnderflowActions))
	copy(out, defaultUnderflowActions)
	return out
}

// persistLocked must be called with mu held.
func (p *Policy) persistLocked() error {
	data, err := json.Marshal(p.tools)
	if err != nil {
		return fmt.Errorf("marshal allowed_tools: %w", err)
	}
	return filepersist.WriteFileAtomic(p.fs, p.path, data)
}
