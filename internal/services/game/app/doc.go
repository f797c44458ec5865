// Package server composes the game service into a runnable process.
//
// It opens the SQLite store with the history signing keyring, builds the
// room broadcast hub and the sessions service, and serves the HTTP JSON API
// (with the /ws room socket) alongside the gRPC GameService and health
// service until the context ends.
package server
