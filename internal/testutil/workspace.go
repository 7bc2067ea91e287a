// Package testutil holds fixtures shared across package test suites.
package testutil

import (
	"testing"
)

// NewTestRunDir returns a fresh temporary run directory, the shape every
// TurnStore/Policy/RenderJobGate test wires together instead of touching a
// real panel_log/run_<ts> directory.
func NewTestRunDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}
