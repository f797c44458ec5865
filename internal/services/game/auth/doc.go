// Package auth verifies room grants: short-lived EdDSA-signed JWTs that bind
// a player to a room. Authorization policy stays with the grant issuer; this
// package only checks that a presented grant is authentic, current, and
// scoped to the requested room.
package auth
