// Package metadata handles game gRPC request metadata.
//
// Every unary call gets a request id, echoed in the response header, and a
// negotiated locale read from accept-language.
package metadata
