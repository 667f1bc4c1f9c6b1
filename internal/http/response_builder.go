package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"spendwise/internal/core"
	"spendwise/internal/ledger"
	"spendwise/internal/log"
	"spendwise/internal/remote"
	"spendwise/internal/services"
	"spendwise/internal/state"
)

// ResponseBuilder provides a fluent API for JSON responses.
type ResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError() *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal error")
}

// statusFor maps domain errors onto HTTP status codes. Unknown errors are
// internal.
func statusFor(err error) int {
	var ve *ledger.ValidationError
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, state.ErrNotFound), errors.Is(err, ledger.ErrWalletNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateID), errors.Is(err, core.ErrReservedCategory):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrInvalidCategoryType),
		errors.Is(err, core.ErrBudgetNotAllowed),
		errors.Is(err, core.ErrInvalidWalletKind),
		errors.Is(err, ledger.ErrNotDebtWallet),
		errors.Is(err, services.ErrEmptyPassword):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrWrongPassword):
		return http.StatusForbidden
	case errors.Is(err, remote.ErrDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, state.ErrRemoteError):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError logs err and writes it as JSON. Internal errors are not echoed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	logger := log.FromContext(r.Context())
	if code >= 500 {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldPath, r.URL.Path, log.FieldError, err)
		if code == http.StatusInternalServerError {
			InternalServerError().Write(w)
			return
		}
	}

	body := errorBody{Error: err.Error()}
	var ve *ledger.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
		body.Error = ve.Err.Error()
	}
	NewResponse().Status(code).JSON(body).Write(w)
}
