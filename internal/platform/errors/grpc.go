package errors

import (
	"context"
	"errors"

	"github.com/careercounsel/cardroom/internal/platform/errors/i18n"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultLocale is the default locale for error messages.
const DefaultLocale = "en-US"

// HandleError converts err to a gRPC status for clients. Application errors
// carry their localized message; context errors keep their gRPC codes; any
// other error is reported as Internal without detail.
func HandleError(err error, locale string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	switch {
	case errors.As(err, &appErr):
		resolved, userMsg := UserMessage(appErr, locale)
		return appErr.ToGRPCStatus(resolved, userMsg)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request deadline exceeded")
	default:
		return status.Error(codes.Internal, "an unexpected error occurred")
	}
}

// UserMessage renders the localized message for a domain error and returns
// the locale that satisfied the lookup. Rejected actions render their
// rejection reason when the catalog knows it.
func UserMessage(appErr *Error, locale string) (string, string) {
	if locale == "" {
		locale = DefaultLocale
	}
	catalog := i18n.GetCatalog(locale)
	if appErr == nil {
		return catalog.Locale(), catalog.Format(string(CodeUnknown), nil)
	}
	if reason := appErr.Reason(); reason != "" && catalog.Has(reason) {
		return catalog.Locale(), catalog.Format(reason, appErr.Metadata)
	}
	return catalog.Locale(), catalog.Format(string(appErr.Code), appErr.Metadata)
}

// ToGRPCStatus converts the error to a gRPC status. The status message keeps
// the internal message; ErrorInfo carries the code and metadata and
// LocalizedMessage carries userMessage.
func (e *Error) ToGRPCStatus(locale string, userMessage string) error {
	grpcCode := e.Code.GRPCCode()
	st, err := status.New(grpcCode, e.Message).WithDetails(
		&errdetails.ErrorInfo{
			Reason:   string(e.Code),
			Domain:   Domain,
			Metadata: e.Metadata,
		},
		&errdetails.LocalizedMessage{
			Locale:  locale,
			Message: userMessage,
		},
	)
	if err != nil {
		return status.Error(grpcCode, e.Message)
	}
	return st.Err()
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// GetMetadata extracts metadata from an error if present.
// Returns nil if the error is not a domain error or has no metadata.
func GetMetadata(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Metadata
	}
	return nil
}
