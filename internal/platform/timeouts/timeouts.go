// Package timeouts defines shared timeout constants for the cardroom
// transports so HTTP, gRPC and websocket limits stay in one place.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second

// WebsocketWrite bounds a single broadcast frame write to a slow peer.
const WebsocketWrite = 2 * time.Second
