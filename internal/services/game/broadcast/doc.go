// Package broadcast fans session updates out to websocket subscribers
// grouped by room. Clients connect to /ws?room=<id>, receive a room.joined
// frame with the current board, then a state.updated frame after every
// accepted action in that room.
package broadcast
