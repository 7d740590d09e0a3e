// Package httpserver contains HTTP handlers and middleware.
//
// It exposes criteria import, document upload, assessment creation and
// retrieval, and CSV/XLSX export. Handlers translate domain errors into a
// uniform JSON error envelope.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps err to an HTTP status and error code. Specific input
// errors wrap ErrInvalidArgument, so they are matched first.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrCSVSchemaInvalid):
		return http.StatusBadRequest, "CSV_SCHEMA_INVALID"
	case errors.Is(err, domain.ErrSizeLimitExceeded):
		return http.StatusRequestEntityTooLarge, "SIZE_LIMIT_EXCEEDED"
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT"
	case errors.Is(err, domain.ErrPageLimitExceeded):
		return http.StatusUnprocessableEntity, "PAGE_LIMIT_EXCEEDED"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, domain.ErrModelInvocationFailed):
		return http.StatusServiceUnavailable, "MODEL_UNAVAILABLE"
	case errors.Is(err, domain.ErrSchemaInvalid):
		return http.StatusServiceUnavailable, "SCHEMA_INVALID"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeError(w http.ResponseWriter, r *http.Request, err error, details any) {
	code, codeStr := errorStatus(err)
	if code >= http.StatusInternalServerError {
		LoggerFrom(r).Error("request failed", "error", err)
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: err.Error(), Details: details}})
}
