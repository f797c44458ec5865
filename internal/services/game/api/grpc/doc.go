// Package grpc groups the game gRPC transport.
//
//   - game: cardroom.game.v1.GameService over google.protobuf.Struct
//   - metadata: request id and locale propagation
package grpc
