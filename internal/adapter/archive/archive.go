// Package archive optionally mirrors each turn's persisted artifacts
// (annotated PNG, turn JSON) to durable off-box storage, behind an
// Archiver interface so the engine never depends on a concrete backend.
package archive

import (
	"context"
)

// Archiver mirrors one turn's artifacts to a storage backend. Failures are
// logged by the caller and never fail the turn itself: archiving is a
// best-effort mirror of what is already durably on disk under run_dir.
type Archiver interface {
	// ArchiveTurn uploads the annotated PNG and the marshaled turn JSON for
	// one seq under runDir.
	ArchiveTurn(ctx context.Context, runDir string, seq int, turnJSON, pngBytes []byte) error
}

// NoopArchiver is the default Archiver when no S3 bucket is configured. It
// mirrors nothing: run_dir on local disk is the sole artifact store.
type NoopArchiver struct{}

// ArchiveTurn does nothing and never errors.
func (NoopArchiver) ArchiveTurn(context.Context, string, int, []byte, []byte) error {
	return nil
}
