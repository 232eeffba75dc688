package engine

import "github.com/converge-sh/converge/internal/dispatch"

// handlerQueue is an insertion-ordered, deduplicated set of handler names.
//
// The first insertion of a name fixes its position; re-inserting the same
// name later in the run is a no-op, so a handler notified by several
// assertions still runs exactly once, at the position of its first trigger.
// Names are compared in canonical form, making dedup insensitive to the
// Unicode form a playbook author happened to type.
//
// A queue belongs to exactly one run: created empty when the run starts,
// drained once after the last assertion, then discarded. It is owned by the
// run's goroutine and needs no locking.
type handlerQueue struct {
	names []string
	seen  map[string]struct{}
}

func newHandlerQueue() *handlerQueue {
	return &handlerQueue{seen: make(map[string]struct{})}
}

// Add inserts name unless an equivalent name is already queued.
// Returns true if the name was inserted.
func (q *handlerQueue) Add(name string) bool {
	canon := dispatch.CanonicalName(name)
	if _, dup := q.seen[canon]; dup {
		return false
	}
	q.seen[canon] = struct{}{}
	q.names = append(q.names, canon)
	return true
}

// Len returns the number of distinct names queued.
func (q *handlerQueue) Len() int {
	return len(q.names)
}

// Drain returns the queued names in first-seen order and empties the queue.
func (q *handlerQueue) Drain() []string {
	names := q.names
	q.names = nil
	q.seen = make(map[string]struct{})
	return names
}
