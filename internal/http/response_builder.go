// This file implements a small builder for JSON responses and the mapping
// from service errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"tipsplit/internal/core"
	applog "tipsplit/internal/log"
	"tipsplit/internal/services"
	"tipsplit/internal/storage"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Messages returned in the "error" field.
const (
	MsgInsufficientFunds  = "Not enough cash to distribute"
	MsgNotFound           = "Distribution not found"
	MsgHistoryUnavailable = "Distribution history is not available"
	MsgInternal           = "Internal server error"
	MsgRateLimited        = "Rate limit exceeded. Please try again later."
)

// JSONResponseBuilder provides a fluent API for JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
	raw        []byte
}

// NewJSONResponse creates a builder with default 200 status.
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

// Body sets a value to be encoded as JSON.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.payload = v
	b.raw = nil
	return b
}

// RawBody sets an already encoded JSON document.
func (b *JSONResponseBuilder) RawBody(doc []byte) *JSONResponseBuilder {
	b.raw = doc
	b.payload = nil
	return b
}

// Write sends the response. An encoding failure becomes a 500.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	body := b.raw
	if body == nil {
		var err error
		body, err = json.Marshal(b.payload)
		if err != nil {
			w.Header().Set("Content-Type", contentTypeJSON)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"` + MsgInternal + `"}`))
			return
		}
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

type errorBody struct {
	Error string `json:"error"`
}

type insufficientFundsBody struct {
	Error         string `json:"error"`
	Distributable int64  `json:"distributable"`
	Needed        int64  `json:"needed"`
}

// ErrorResponse creates a {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, MsgInternal)
}

// ErrorFor maps an error from parsing or the service to a response.
func ErrorFor(err error) *JSONResponseBuilder {
	var insufficient *core.InsufficientFundsError
	var validation *ValidationError

	switch {
	case errors.As(err, &insufficient):
		return NewJSONResponse().Status(http.StatusBadRequest).Body(insufficientFundsBody{
			Error:         MsgInsufficientFunds,
			Distributable: insufficient.Distributable,
			Needed:        insufficient.Needed,
		})
	case errors.Is(err, core.ErrInsufficientFunds):
		return BadRequestError(MsgInsufficientFunds)
	case errors.As(err, &validation):
		return BadRequestError(validation.Error())
	case errors.Is(err, ErrMalformedInput):
		return BadRequestError(err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return NotFoundError(MsgNotFound)
	case errors.Is(err, services.ErrHistoryUnavailable):
		return ErrorResponse(http.StatusServiceUnavailable, MsgHistoryUnavailable)
	default:
		return InternalServerError()
	}
}

// writeError logs server-side failures and writes the mapped response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorFor(err)
	if resp.statusCode == http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
	}
	resp.Write(w)
}
