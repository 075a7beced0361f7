// Package state holds the engine state model shared by the transaction manager,
// the operators and the persistence layer.
//
// Two views of the same data exist:
//
//   - EngineState is the durable snapshot: which catalogs exist, whether they are
//     active, inactive or read-only, the engine version and the WAL position that
//     version corresponds to. It is what the persistence service stores.
//   - Expanded is the in-memory working state: an EngineState plus the live
//     Catalog references. It is never mutated in place; every change produces a
//     new value through a Builder.
//
// A Catalog carries two states. State is what readers see right now and may be
// transitional (BeingCreated, GoingAlive, ...). Committed is the last state that
// was made durable. Snapshots are derived from Committed only, so speculative
// in-memory states installed while a mutation runs never reach disk.
package state
