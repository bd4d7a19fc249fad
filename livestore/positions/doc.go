// Package positions generates the dense-order string keys that index
// List children.
//
// A position is a non-empty string over a fixed 62-character alphabet
// (digits, uppercase, lowercase, in ASCII order), compared
// lexicographically with the usual "shorter prefix sorts first" rule.
// Between any two distinct positions another position can always be
// minted, so list inserts never need to renumber neighbours. To keep
// that density property, a minted position never ends in the minimum
// digit '0': there is no key strictly between "a" and "a0".
//
// Generation is a pure function of its bounds. Two replicas that call
// Between with the same bounds mint the same key, which is what makes
// concurrent first-slot inserts collide deterministically (and lets the
// conflict be detected and repaired by the list itself).
package positions
