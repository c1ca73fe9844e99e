package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/blocksync/internal/remote"
)

// createTestStore creates a new store in a temp directory.
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

// createTestScore creates a score with the given rank and gain time.
func createTestScore(mode string, sortValue int64, gainedAt time.Time) *remote.Score {
	s := remote.NewScore(sortValue, mode, remote.PlatformDesktop, "keyboard", "", "", remote.ScoreCounters{
		DrawnBlocks: 120,
		Lines:       30,
		Score:       int(sortValue),
	})
	s.GainedAt = gainedAt
	return s
}
