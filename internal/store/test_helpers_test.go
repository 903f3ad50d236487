package store

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store in a temp dir.
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

// createTestRun creates a successful run with minimal required fields.
func createTestRun(id, unit string, seq int64) Run {
	return Run{
		ID:          id,
		Unit:        unit,
		InputHash:   "in-" + id,
		OutputHash:  "out-" + id,
		Status:      StatusOK,
		PassVersion: "0.1.0",
		Seq:         seq,
	}
}
