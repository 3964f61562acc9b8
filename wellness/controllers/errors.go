package controllers

import (
	"errors"
	"net/http"

	"wellness/wellness/services/llm"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBlocked      = llm.ErrBlocked
)

// Error is a client facing failure. Message is what the caller sees, Kind
// picks the status code and Fields are merged into the response body.
type Error struct {
	Kind    error
	Message string
	Fields  map[string]any
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Kind }

func notFound(msg string) error   { return &Error{Kind: ErrNotFound, Message: msg} }
func conflict(msg string) error   { return &Error{Kind: ErrConflict, Message: msg} }
func badRequest(msg string) error { return &Error{Kind: ErrBadRequest, Message: msg} }

// FieldError names one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a request body fails validation.
type ValidationError struct {
	Message string
	Details []FieldError
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return ErrBadRequest }

// StatusCode maps an error returned by a controller to an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrBlocked):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody renders err for the response. Only messages written by a
// controller reach the client; other server errors are masked.
func ErrorBody(err error) map[string]any {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return map[string]any{"error": ve.Message, "details": ve.Details}
	}
	var ce *Error
	if errors.As(err, &ce) {
		body := map[string]any{"error": ce.Message}
		for k, v := range ce.Fields {
			body[k] = v
		}
		return body
	}
	if StatusCode(err) >= http.StatusInternalServerError {
		return map[string]any{"error": "Internal server error"}
	}
	return map[string]any{"error": err.Error()}
}
