// Package store provides SQLite-backed run history for converge.
//
// Each engine run is persisted as one record with:
//   - Runs: run identity, playbook fingerprint, mode, status, timing
//   - Changes: per-assertion change records in declaration order
//   - Dispatches: per-handler outcomes in dispatch order
//
// # Write Discipline
//
//   - A run is recorded in a single transaction; a crash never leaves a
//     run row without its changes and dispatches
//   - Run IDs are UUIDv7, so id order and time order agree
//   - ON CONFLICT(id) DO NOTHING makes RecordRun idempotent: re-recording
//     a run is a no-op
//
// # Read Discipline
//
//   - All queries carry an explicit ORDER BY; listing is newest-first by
//     started_at, detail rows come back in seq order
//   - Reads return empty slices, never nil
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// History is unbounded; pruning old runs is the operator's concern.
package store
