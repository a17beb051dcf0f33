// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteBundle creates a minimal saved model bundle layout under dir and
// returns dir. The files are placeholders; only the layout is meaningful.
func WriteBundle(t *testing.T, dir string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Join(dir, "variables"), 0o755); err != nil {
		t.Fatalf("Failed to create bundle: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "saved_model.pb"), []byte("\x08\x01"), 0o644); err != nil {
		t.Fatalf("Failed to write saved_model.pb: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "variables", "variables.index"), []byte("idx"), 0o644); err != nil {
		t.Fatalf("Failed to write variables.index: %v", err)
	}

	return dir
}
