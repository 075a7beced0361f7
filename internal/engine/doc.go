// Package engine wires the engine transaction manager to its storage.
//
// ARCHITECTURE:
//
// Bootstrap:
// 1. The storage directory is created if missing
// 2. The SQLite database yields the last durable EngineState (empty when new)
// 3. Every catalog folder contributes its catalog.yaml descriptor; the
//    durable state decides whether the catalog is active, inactive or
//    read-only
// 4. The working state is built, the worker pool started and the
//    transaction manager created; it drops WAL records the durable state
//    does not cover
//
// Mutation Flow:
// 1. Callers submit engine mutations through Apply or the convenience API
// 2. The transaction manager admits them under the engine state lock
// 3. Operators run on the worker pool and commit through the manager
// 4. Committed mutations reach change subscribers once their version is live
//
// Thread-safety: every Engine method is safe for concurrent use. The working
// state is replaced atomically and never modified in place.
package engine
