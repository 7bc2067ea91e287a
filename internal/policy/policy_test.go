package policy

import (
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
)

func TestLoadSeedsDefaultsWhenMissing(t *testing.T) {
	fs := afero.NewMemMapFs()

	p, err := Load(fs, "run_dir/allowed_tools.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	got := p.Snapshot()
	if len(got) != len(DefaultTools) {
		t.Fatalf("Snapshot() = %v, want %v", got, DefaultTools)
	}

	data, err := afero.ReadFile(fs, "run_dir/allowed_tools.json")
	if err != nil {
		t.Fatalf("seeded file not written: %v", err)
	}
	var onDisk []string
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("seeded file invalid JSON: %v", err)
	}
	if len(onDisk) != len(DefaultTools) {
		t.Fatalf("on-disk tools = %v, want %v", onDisk, DefaultTools)
	}
}

func TestLoadReadsExistingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "run_dir/allowed_tools.json", []byte(`["click","write"]`), 0o644)

	p, err := Load(fs, "run_dir/allowed_tools.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	got := p.Snapshot()
	if len(got) != 2 || got[0] != "click" || got[1] != "write" {
		t.Fatalf("Snapshot() = %v, want [click write]", got)
	}
}

func TestReplacePersistsAtomically(t *testing.T) {
	fs := afero.NewMemMapFs()
	p, err := Load(fs, "run_dir/allowed_tools.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := p.Replace([]string{"click"}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	if got := p.Snapshot(); len(got) != 1 || got[0] != "click" {
		t.Fatalf("Snapshot() = %v, want [click]", got)
	}

	data, _ := afero.ReadFile(fs, "run_dir/allowed_tools.json")
	var onDisk []string
	json.Unmarshal(data, &onDisk)
	if len(onDisk) != 1 || onDisk[0] != "click" {
		t.Fatalf("on-disk tools = %v, want [click]", onDisk)
	}
}

func TestDefaultUnderflowActionsReturnsCenteredClicksAndIsACopy(t *testing.T) {
	fs := afero.NewMemMapFs()
	p, _ := Load(fs, "run_dir/allowed_tools.json")

	got := p.DefaultUnderflowActions()
	if len(got) != 2 {
		t.Fatalf("DefaultUnderflowActions() = %v, want 2 entries", got)
	}
	for _, a := range got {
		if a.Name != "click" || len(a.Args) != 2 || a.Args[0] != "500" || a.Args[1] != "500" {
			t.Fatalf("DefaultUnderflowActions() entry = %+v, want click(500, 500)", a)
		}
	}

	got[0].Name = "mutated"
	if fresh := p.DefaultUnderflowActions(); fresh[0].Name == "mutated" {
		t.Fatal("DefaultUnderflowActions() leaked internal slice; mutation should not be visible")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	fs := afero.NewMemMapFs()
	p, _ := Load(fs, "run_dir/allowed_tools.json")

	snap := p.Snapshot()
	snap[0] = "mutated"

	if got := p.Snapshot(); got[0] == "mutated" {
		t.Fatal("Snapshot() leaked internal slice; mutation should not be visible")
	}
}
