package errors

import "maps"

// Domain is the ErrorInfo domain for cardroom errors.
const Domain = "github.com/careercounsel/cardroom"

// Metadata keys shared by producers and renderers.
const (
	// MetaReason holds the engine rejection code of an ACTION_REJECTED error.
	MetaReason = "Reason"
	MetaZone   = "Zone"
)

// Error is a coded application error. Message is for logs; clients see the
// catalog text for Code rendered with Metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// New creates an error with no metadata.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata creates an error whose metadata feeds the message template.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates an error around cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WrapWithMetadata creates an error with metadata around cause.
func WrapWithMetadata(code Code, message string, metadata map[string]string, cause error) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata, Cause: cause}
}

// Rejected builds an ACTION_REJECTED error for an engine rejection. The
// metadata is copied and reason is stored under MetaReason.
func Rejected(reason, message string, metadata map[string]string) *Error {
	meta := make(map[string]string, len(metadata)+1)
	maps.Copy(meta, metadata)
	meta[MetaReason] = reason
	return &Error{Code: CodeActionRejected, Message: message, Metadata: meta}
}

// Reason returns the rejection reason of an ACTION_REJECTED error.
func (e *Error) Reason() string {
	if e == nil {
		return ""
	}
	return e.Metadata[MetaReason]
}
