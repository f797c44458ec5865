// Package game serves cardroom.game.v1.GameService.
//
// Requests and responses are google.protobuf.Struct messages whose fields
// mirror the HTTP JSON API. The service descriptor is declared by hand so
// the transport needs no generated stubs.
package game
