// Package errors provides structured error handling with i18n support.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Lookup errors
	CodeNotFound    Code = "NOT_FOUND"
	CodeRuleUnknown Code = "RULE_UNKNOWN"

	// Request validation errors
	CodeRoomIDRequired    Code = "ROOM_ID_REQUIRED"
	CodeSessionIDRequired Code = "SESSION_ID_REQUIRED"
	CodeActionInvalid     Code = "ACTION_INVALID"
	CodeFilterInvalid     Code = "FILTER_INVALID"

	// Session lifecycle errors
	CodeActiveSessionExists Code = "ACTIVE_SESSION_EXISTS"
	CodeSessionCompleted    Code = "SESSION_COMPLETED"
	CodeSessionIncomplete   Code = "SESSION_INCOMPLETE"
	CodeVersionConflict     Code = "VERSION_CONFLICT"

	// Engine errors. Metadata carries the rejection Reason and, when known, the Zone.
	CodeActionRejected Code = "ACTION_REJECTED"

	// Room grant errors
	CodeRoomGrantRequired Code = "ROOM_GRANT_REQUIRED"
	CodeRoomGrantInvalid  Code = "ROOM_GRANT_INVALID"
	CodeRoomGrantExpired  Code = "ROOM_GRANT_EXPIRED"
	CodeRoomGrantMismatch Code = "ROOM_GRANT_MISMATCH"
	CodeRoomRoleForbidden Code = "ROOM_ROLE_FORBIDDEN"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeRuleUnknown,
		CodeRoomIDRequired,
		CodeSessionIDRequired,
		CodeActionInvalid,
		CodeFilterInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeActiveSessionExists,
		CodeSessionCompleted,
		CodeSessionIncomplete,
		CodeActionRejected:
		return codes.FailedPrecondition

	case CodeVersionConflict:
		return codes.Aborted

	case CodeNotFound:
		return codes.NotFound

	case CodeRoomGrantRequired,
		CodeRoomGrantInvalid,
		CodeRoomGrantExpired:
		return codes.Unauthenticated

	case CodeRoomGrantMismatch, CodeRoomRoleForbidden:
		return codes.PermissionDenied

	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.FailedPrecondition:
		if c == CodeActionRejected {
			return http.StatusUnprocessableEntity
		}
		return http.StatusConflict
	case codes.Aborted:
		return http.StatusConflict
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
