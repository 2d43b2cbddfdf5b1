// Package httputil centralizes JSON responses and domain error translation
// for the HTTP layer.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	dErrors "tradegate/pkg/domain-errors"
)

// ErrorDetail is the stable error envelope callers branch on.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	TraceID string `json:"traceId,omitempty"`
}

// ErrorResponse wraps ErrorDetail the way the public API exposes it.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError translates transport-agnostic domain errors into HTTP status codes
// and stable error envelopes. Internal and transient failures are reported
// generically with a trace id for support lookup instead of leaking details.
func WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		detail := ErrorDetail{Code: ErrorCode(domainErr.Code)}
		switch domainErr.Code {
		case dErrors.CodeInternal, dErrors.CodeInvariantViolation, dErrors.CodeTransient:
			detail.TraceID = TraceID(ctx)
		default:
			detail.Message = domainErr.Message
		}
		WriteJSON(w, StatusCode(domainErr.Code), ErrorResponse{Error: detail})
		return
	}

	// Fallback for unexpected errors.
	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{
		Code:    ErrorCode(dErrors.CodeInternal),
		TraceID: TraceID(ctx),
	}})
}

// StatusCode translates domain error codes to HTTP status codes.
func StatusCode(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeInvariantViolation:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode translates domain error codes to the public API error code strings.
func ErrorCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound:
		return "NOT_FOUND"
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return "BAD_REQUEST"
	case dErrors.CodeValidation, dErrors.CodeInvariantViolation:
		return "VALIDATION_FAILED"
	case dErrors.CodeConflict:
		return "CONFLICT"
	case dErrors.CodeUnauthorized:
		return "UNAUTHORIZED"
	case dErrors.CodeForbidden:
		return "FORBIDDEN"
	case dErrors.CodeTransient:
		return "TRANSIENT"
	default:
		return "INTERNAL_ERROR"
	}
}

// TraceID extracts the current trace id for error correlation.
// Returns empty when no recording span is present (e.g. in tests).
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
