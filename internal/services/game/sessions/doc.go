// Package sessions is the application layer for game sessions.
//
// It resolves a room's rule, loads and stores boards through
// storage.Store, runs actions through the engine, and announces accepted
// changes to a Publisher. The engine stays pure; lifecycle, versioning and
// turn bookkeeping live here.
package sessions
