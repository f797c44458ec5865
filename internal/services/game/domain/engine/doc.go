// Package engine interprets player actions against a rule configuration and
// a board snapshot.
//
// An Engine holds only its configuration. Every call is synchronous and free
// of side effects: validation reads the state, and an accepted action yields
// a new state one version ahead. Persisting that state, and making sure only
// one action applies per version, is the caller's job.
package engine
