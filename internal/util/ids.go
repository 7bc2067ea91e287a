// Package util holds small cross-cutting helpers (id generation, atomic
// file writes) shared by packages that would otherwise each reinvent them.
package util

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewULID returns a lexicographically sortable, time-prefixed identifier.
// Successive calls share one monotonic entropy source, so ids increase
// even within the same millisecond. Used to tag each memory entry.
func NewULID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy)
	return id.String()
}
