package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/preproc/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// beginTestRun inserts a run with minimal required fields.
func beginTestRun(t *testing.T, s *Store, id string) ir.Run {
	t.Helper()
	run, err := s.BeginRun(context.Background(), ir.Run{
		ID:            id,
		ConfigHash:    "test-hash",
		EngineVersion: ir.EngineVersion,
		ConfigVersion: ir.ConfigVersion,
	})
	if err != nil {
		t.Fatalf("BeginRun(%q) failed: %v", id, err)
	}
	return run
}
