package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/babel/internal/ir"
)

// createTestStore creates a new temp-file store for testing.
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

// seedReplica inserts a replica with an explicit id.
func seedReplica(t *testing.T, s *Store, id int64, ns string, parent int64) *ir.Replica {
	t.Helper()
	r := &ir.Replica{
		ID:        id,
		Namespace: ns,
		Parent:    parent,
		Fields:    ir.Object{ir.FieldPageTitle: ir.String("page")},
	}
	if err := s.InsertReplica(context.Background(), r); err != nil {
		t.Fatalf("InsertReplica(%d) failed: %v", id, err)
	}
	return r
}
