// Package store provides SQLite-backed durable storage for the engine: the
// write-ahead log of committed engine mutations and the latest engine state
// snapshot.
//
// # Layout
//
//   - wal: one row per committed transaction, keyed by engine version. The
//     row holds the transaction wrapper fields and the encoded engine
//     mutation.
//   - engine_state: a single row with the last durable EngineState.
//
// # Guarantees
//
//   - Versions in the WAL are dense: a record for version v is only accepted
//     when the log ends at v-1.
//   - A stored engine state always advances the previous one by exactly one
//     version and references an existing WAL record.
//   - Streams read from a separate read-only connection pool, so an open
//     stream never blocks the writer.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
