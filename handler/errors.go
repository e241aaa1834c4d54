package handler

import (
	"errors"
	"net/http"
)

var ErrNilResponse = errors.New("handler returned nil response")

// HTTPError is an error that knows its status and public envelope code.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
	Meta    map[string]any
}

func (e HTTPError) Error() string {
	return e.Code + ": " + e.Message
}

// NewHTTPError builds an HTTPError.
func NewHTTPError(status int, code, message string) HTTPError {
	return HTTPError{Status: status, Code: code, Message: message}
}

// WithDetails returns a copy carrying details.
func (e HTTPError) WithDetails(details map[string]any) HTTPError {
	e.Details = details
	return e
}

// WithMeta returns a copy carrying envelope meta.
func (e HTTPError) WithMeta(meta map[string]any) HTTPError {
	e.Meta = meta
	return e
}

var (
	ErrBadRequest   = NewHTTPError(http.StatusBadRequest, "BAD_REQUEST", "Bad request")
	ErrUnauthorized = NewHTTPError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
	ErrForbidden    = NewHTTPError(http.StatusForbidden, "FORBIDDEN", "Forbidden")
	ErrNotFound     = NewHTTPError(http.StatusNotFound, "NOT_FOUND", "Not found")
	ErrTooLarge     = NewHTTPError(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
	ErrInternal     = NewHTTPError(http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
)
