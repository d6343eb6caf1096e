// Package http serves the JSON API.
//
// This file holds the fluent response builder every handler writes through,
// and the mapping from domain errors to status codes.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"spendwise/internal/core"
	"spendwise/internal/log"
)

// Error codes returned in the "code" member of an error body.
const (
	CodeMalformed            = "malformed_request"
	CodeValidation           = log.ErrorTypeValidation
	CodeNotFound             = log.ErrorTypeNotFound
	CodeUnauthorized         = log.ErrorTypeAuth
	CodeUnavailable          = "store_unavailable"
	CodeTimeout              = "timeout"
	CodeConfirmationRequired = "confirmation_required"
	CodeRateLimited          = "rate_limited"
	CodeInternal             = log.ErrorTypeInternal
)

var (
	errMalformedBody        = errors.New("malformed request body")
	errConfirmationRequired = errors.New("deletion must be confirmed with confirm=true")
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	payload    any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *JSONResponseBuilder) JSON(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Write sends the response. A nil payload writes headers only.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"internal_error","message":"failed to encode response"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		JSON(ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeMalformed, message)
}

// ValidationErrorResponse names the offending field when there is one.
func ValidationErrorResponse(field, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusUnprocessableEntity).
		JSON(ErrorBody{Error: ErrorDetail{Code: CodeValidation, Message: message, Field: field}})
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, CodeNotFound, message)
}

func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, CodeUnauthorized, message).
		Header("WWW-Authenticate", `Bearer realm="spendwise"`)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, CodeInternal, message)
}

// writeError maps err onto the API's status codes and logs what the client
// is not told. Only validation messages are echoed back verbatim.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentHTTP)

	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		ValidationErrorResponse(ve.Field, ve.Error()).Write(w)
	case errors.Is(err, errMalformedBody):
		BadRequestError(err.Error()).Write(w)
	case errors.Is(err, core.ErrValidation):
		ValidationErrorResponse("", err.Error()).Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError("expense not found").Write(w)
	case errors.Is(err, core.ErrAccess):
		logger.InfoContext(r.Context(), "Request not authorized", log.FieldError, err)
		UnauthorizedError("authentication required").Write(w)
	case errors.Is(err, context.DeadlineExceeded):
		logger.WarnContext(r.Context(), "Request timed out", log.FieldError, err)
		ErrorResponse(http.StatusGatewayTimeout, CodeTimeout, "request timed out").Write(w)
	case errors.Is(err, core.ErrStoreUnavailable):
		logger.ErrorContext(r.Context(), "Store unavailable",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeDatabase)
		ErrorResponse(http.StatusServiceUnavailable, CodeUnavailable, "storage is temporarily unavailable").
			Header("Retry-After", "5").
			Write(w)
	default:
		logger.ErrorContext(r.Context(), "Unhandled request error",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeInternal)
		InternalServerError("internal error").Write(w)
	}
}
