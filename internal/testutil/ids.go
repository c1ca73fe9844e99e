package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs hands out predictable UUID-shaped ids.
//
// The first call to Next returns "00000000-0000-0000-0000-000000000001".
// Tests use it wherever the service would mint a fresh match uuid, so golden
// traces stay byte-identical between runs.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu sync.Mutex
	n  int
}

// NewSequentialIDs creates a generator starting at 1.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

// Next returns the next id.
func (g *SequentialIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", g.n)
}
