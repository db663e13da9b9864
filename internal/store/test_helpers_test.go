package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/ruleware/internal/ir"
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

// createTestDispatch creates a dispatch with its content-addressed ID.
func createTestDispatch(token string, action ir.Action, seq int64, parent string, depth int) Dispatch {
	return Dispatch{
		ID:            ir.MustDispatchID(token, action, seq),
		Token:         token,
		ParentID:      parent,
		Depth:         depth,
		Action:        action,
		Seq:           seq,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
}
