// Package metadata tracks the resolution lifecycle of every
// (selector name, argument tuple) pair a store has resolved.
//
// The package is a pure reducer plus selectors. State values are immutable:
// every transition that changes something returns a new *State, and an
// action that changes nothing returns the input pointer, so callers can use
// pointer identity to detect change.
//
// Lifecycle per key:
//
//	unresolved -> resolving -> finished
//	                        -> error
//
// Transitions only move forward. Invalidation is the only way back to
// unresolved. Entries are never evicted.
package metadata
