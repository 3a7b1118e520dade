package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/pipec/internal/ir"
	"github.com/roach88/pipec/internal/testutil"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createClockedStore creates a store whose expiry clock the test drives.
func createClockedStore(t *testing.T) (*Store, *testutil.DeterministicClock) {
	t.Helper()
	clock := testutil.NewDeterministicClock(time.Time{})
	return createTestStore(t, WithNow(clock.Now)), clock
}

func localSource(path string) ir.IncludeSource {
	return ir.IncludeSource{Kind: ir.SourceLocal, Location: path}
}

func fetched(name, content string) *ir.Fetched {
	return &ir.Fetched{Name: name, Content: []byte(content), Identity: "id-" + content}
}
