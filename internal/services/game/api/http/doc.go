// Package httpapi serves the game JSON API.
//
// Errors are written as {"error":{"code","message"}} with the message
// localized from the request's lang parameter or Accept-Language header.
// When a room grant verifier is configured, room-scoped routes require a
// bearer grant and act as the grant's player.
package httpapi
