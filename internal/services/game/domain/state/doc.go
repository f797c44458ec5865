// Package state holds the versioned, immutable snapshot of a board: which
// cards sit in which zone, plus turn and deck bookkeeping.
//
// Every mutation returns a new GameState with the version bumped by one and
// leaves the receiver untouched. Zones not touched by a mutation are shared
// between the old and new snapshot, so a GameState may be read from any
// number of goroutines without synchronization.
package state
