// Package store provides SQLite-backed durable storage for timetrace.
//
// The store holds three tables:
//   - events: append-only activity log, UNIQUE(time, name, source)
//   - db_properties: typed key/value pairs; per-source watermarks live here
//   - sync_runs: one summary row per synchronization pass
//
// # Idempotent Writes
//
// Event inserts use ON CONFLICT DO NOTHING against the dedup-key
// constraint. The synchronizer checks existence before inserting, but the
// constraint is what actually guarantees no duplicates: a check-then-insert
// race between two writers degrades to a silently ignored conflict.
//
// # Deterministic Reads
//
// Event queries order by time, then name (and source for cross-source
// reads), then id. Empty results are empty slices, never nil.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
