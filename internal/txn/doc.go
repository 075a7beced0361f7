// Package txn coordinates engine-level transactions: catalog lifecycle
// mutations that change the engine as a whole rather than the contents of a
// catalog.
//
// # Lifecycle of a mutation
//
//	ADMITTED -> {PRE_UPDATE}* -> EXECUTING -> POST_UPDATE -> COMMITTED
//	                                      \-> FAILED
//
// Admission runs synchronously under the engine state lock: the mutation's
// conflict keys must not be held by another in-flight transaction and its
// preconditions must hold. The operator then runs on the executor and may
// publish speculative states (pre-updates) before making its result durable
// exactly once (post-update): WAL append, change observer notification,
// snapshot persistence, version bump and installation of the new state all
// happen under the same lock.
//
// The WAL therefore records mutations in commit order, which may differ from
// admission order. A mutation that fails never reaches the WAL.
//
// # Cleanup
//
// Every admitted transaction owns a finalizer that releases its conflict keys
// exactly once, when its Progress reaches a terminal outcome or when dispatch
// fails. Keys are released with compare-and-delete so a rejected transaction
// can never release a key held by somebody else.
package txn
