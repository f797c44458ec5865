// Package api contains service API implementations.
//
// API handlers are organized by transport. Both transports call the same
// sessions.Service, so validation and error codes are shared.
//
// Subpackages:
//   - http: JSON API for rules, sessions, actions and history, plus the
//     room websocket mount
//   - grpc: GameService over google.protobuf.Struct payloads and the
//     standard health service
package api
