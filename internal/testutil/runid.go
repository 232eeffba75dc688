package testutil

import (
	"fmt"
	"sync"
)

// SeqSource generates sequential, formatted run IDs for tests.
//
// This enables deterministic harness execution and golden snapshot comparison.
// The same scenario with the same SeqSource produces byte-identical traces.
//
// Unlike engine.FixedSource, which hands out a pre-declared list and panics
// when it runs dry, SeqSource never exhausts: it formats "<prefix>-0001",
// "<prefix>-0002", ... on demand. This is useful for scenarios whose run
// count varies.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SeqSource struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSeqSource creates a sequential run-ID source.
//
// If prefix is empty, IDs use the prefix "run".
func NewSeqSource(prefix string) *SeqSource {
	if prefix == "" {
		prefix = "run"
	}
	return &SeqSource{prefix: prefix}
}

// NewRunID returns the next ID in sequence.
//
// Implements engine.RunIDSource.
func (s *SeqSource) NewRunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%04d", s.prefix, s.n)
}

// Reset rewinds the sequence to the start.
//
// Used for test reuse. After Reset(), the next NewRunID() returns
// "<prefix>-0001" again.
func (s *SeqSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}
