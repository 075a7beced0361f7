// Package mutation defines engine mutations: immutable commands that change
// which catalogs exist in the engine and in what lifecycle state they are.
//
// Every engine mutation declares the conflict keys it touches, verifies its own
// preconditions against the current engine state without side effects, and is
// identified by a Kind that selects the operator executing it. Mutations travel
// through the write-ahead log encoded by Encode and Decode.
package mutation
