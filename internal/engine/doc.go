// Package engine implements the converge convergence loop.
//
// The engine takes an ordered list of assertions about filesystem state,
// probes the live state for each one, applies the minimal mutation needed to
// make the assertion hold, and collects change-triggered handler
// notifications for deferred dispatch.
//
// ARCHITECTURE:
//
// Single-pass, declaration-order evaluation:
// Assertions are evaluated strictly in the order declared, one at a time, in
// the caller's goroutine. This ensures:
// - Predictable interaction between assertions that touch related paths
// - Reproducible change records and handler order
// - Simple reasoning about what mutated before a failure
//
// Evaluation flow per assertion:
// 1. Probe the path fresh (never cached; an earlier assertion may have
//    mutated a path a later one inspects)
// 2. Compare probed state against the asserted state
// 3. If they differ, apply exactly one mutation (atomic write or remove)
// 4. If a mutation happened, record the assertion's notify names in the
//    handler queue (insertion-ordered, deduplicated)
//
// Handlers never run inline. After the last assertion, the queue is drained
// once and each distinct handler is dispatched at most once, in first-seen
// order. A handler failure does not stop the remaining handlers, but it does
// fail the overall run.
//
// INVARIANTS:
//   - Assertion order never changes after Run is called
//   - An assertion that required no mutation enqueues nothing
//   - The handler queue is created empty per run and discarded after draining
//   - Any probe or mutation error aborts the run; prior mutations stay
//     (each write is independently atomic, there is no rollback)
//
// The engine is designed for correctness and idempotence, not throughput.
// Parallelism, if any, belongs to callers running independent assertion sets
// against disjoint targets.
package engine
