// Package sqlite implements game session persistence on SQLite.
//
// A session row carries the latest serialized board and a version used for
// compare-and-swap writes. Each accepted action is appended to a per-session
// log whose rows are hash-chained and, when a keyring is configured, signed.
// Schema changes ship as embedded migrations applied on open.
package sqlite
