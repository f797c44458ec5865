package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	apperrors "github.com/careercounsel/cardroom/internal/platform/errors"
	"github.com/careercounsel/cardroom/internal/platform/i18n"
	"github.com/careercounsel/cardroom/internal/platform/requestctx"
)

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Reason   string            `json:"reason,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write json response: %v", err)
	}
}

// writeError renders err in the request locale. Errors without a domain code
// are logged and reported as UNKNOWN.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	locale := requestctx.LocaleFromContext(r.Context())
	if locale == "" {
		locale = i18n.ResolveRequest(r)
	}

	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		log.Printf("request failed method=%s path=%s request_id=%s err=%v", r.Method, r.URL.Path, requestctx.RequestIDFromContext(r.Context()), err)
		_, message := apperrors.UserMessage(nil, locale)
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: errorBody{
			Code:    string(apperrors.CodeUnknown),
			Message: message,
		}})
		return
	}

	status := appErr.Code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("request failed method=%s path=%s request_id=%s err=%v", r.Method, r.URL.Path, requestctx.RequestIDFromContext(r.Context()), err)
	}
	_, message := apperrors.UserMessage(appErr, locale)
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:     string(appErr.Code),
		Message:  message,
		Reason:   appErr.Reason(),
		Metadata: appErr.Metadata,
	}})
}
