package engine

import (
	"sync"

	"github.com/google/uuid"
)

// UUIDv7Source generates time-sortable UUIDv7 run IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, so run IDs sort by
// start time. That makes run history listings and log correlation cheap.
//
// Thread-safety: UUIDv7Source is stateless and safe for concurrent use.
type UUIDv7Source struct{}

// NewRunID returns a new UUIDv7 as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Source) NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedSource returns predetermined run IDs for testing.
//
// This enables deterministic test execution and golden trace comparison.
// Tests provide a known sequence of IDs and verify exact report output.
//
// Thread-safety: FixedSource is safe for concurrent use via internal mutex.
type FixedSource struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedSource creates a source that returns ids in order.
//
// Example:
//
//	src := NewFixedSource("run-1", "run-2")
//	src.NewRunID() // "run-1"
//	src.NewRunID() // "run-2"
//	src.NewRunID() // panic: all IDs exhausted
func NewFixedSource(ids ...string) *FixedSource {
	return &FixedSource{ids: ids}
}

// NewRunID returns the next predetermined ID.
//
// Panics if all IDs have been consumed. This is a fail-fast approach to
// catch test misconfiguration (test started more runs than expected).
func (s *FixedSource) NewRunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idx >= len(s.ids) {
		panic("FixedSource: all run IDs exhausted")
	}
	id := s.ids[s.idx]
	s.idx++
	return id
}
