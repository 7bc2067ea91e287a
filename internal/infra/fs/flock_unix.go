//go:build !windows
// +build !windows

package fs

import (
	"os"
	"syscall"
)

// flockExclusive acquires a non-blocking exclusive lock on the file,
// returning an error immediately if another process already holds it.
func flockExclusive(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
}

// flockUnlock releases the lock on the file
func flockUnlock(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
