// Package storage defines persistence interfaces for game sessions.
//
// A session row holds the latest serialized board; the action log keeps one
// row per accepted action. Implementations (e.g., SQLite) live in
// subpackages.
//
// Common error types:
//   - ErrNotFound: requested record is missing
//   - ErrActiveSessionExists: the room already has a session that is not completed
//   - ErrVersionConflict: a compare-and-swap write lost to a concurrent writer
package storage
