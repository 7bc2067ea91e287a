package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

func AtomicWriteJSON(path string, v any) error {
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// AcquireLock takes an advisory exclusive lock on lockPath, preventing two
// processes (e.g. two `vispanel run` instances) from sharing the same
// run_base concurrently. Unlike a bare O_EXCL create, the lock is released
// by the kernel if the holding process dies, so a crash never leaves a
// stale lock file behind.
func AcquireLock(lockPath string) (release func() error, err error) {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := flockExclusive(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("another process is running (lock): %w", err)
	}
	return func() error {
		flockUnlock(f)
		return f.Close()
	}, nil
}
