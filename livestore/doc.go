// Package livestore implements a client-side collaborative data tree.
//
// A Document is one replica of a tree built from four node variants:
// Object (keyed record with scalar-or-node entries), Map (keyed
// container of nodes), List (ordered sequence keyed by dense position
// strings), and Register (an internal scalar wrapper that lets Map and
// List children be nodes uniformly).
//
// Every local mutation updates the replica in place and produces an
// operation list plus its reverse. The forward ops go to the injected
// broadcast callback; the reverse feeds the undo stack. Remote ops
// enter through ApplyRemoteOperations and converge without coordination:
// Object entries resolve per-key last-writer-wins with an
// acknowledgement table that suppresses a replica's own echoes, and List
// position collisions are repaired by shifting whichever of the two
// colliding items has the larger identity to a freshly minted key.
//
// The engine is fully synchronous and single-owner. All asynchrony
// (transport, persistence, scheduling) belongs to the host; the engine
// calls the broadcast callback and subscribers inline from the mutating
// call.
package livestore
