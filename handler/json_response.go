package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/tiergate/binder"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	OK    bool           `json:"ok"`
	Data  any            `json:"data,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
}

// ErrorDetail is the error part of a failed envelope.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	body   Envelope
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures a JSON response.
type JSONOption func(*jsonResponse)

// WithStatus overrides the HTTP status code.
func WithStatus(status int) JSONOption {
	return func(r *jsonResponse) {
		r.status = status
	}
}

// WithMeta sets envelope meta.
func WithMeta(meta map[string]any) JSONOption {
	return func(r *jsonResponse) {
		r.body.Meta = meta
	}
}

// JSON renders {"ok":true,"data":data} with status 200 by default.
// A nil data renders as an empty object.
func JSON(data any, opts ...JSONOption) Response {
	if data == nil {
		data = struct{}{}
	}
	r := &jsonResponse{
		status: http.StatusOK,
		body:   Envelope{OK: true, Data: data},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError renders {"ok":false,"error":{...}}. HTTPError values keep their
// status and code, binder failures become 400 or 413, and anything else is
// an opaque 500.
func JSONError(err error, opts ...JSONOption) Response {
	httpErr := ToHTTPError(err)
	r := &jsonResponse{
		status: httpErr.Status,
		body: Envelope{
			OK: false,
			Error: &ErrorDetail{
				Code:    httpErr.Code,
				Message: httpErr.Message,
				Details: httpErr.Details,
			},
			Meta: httpErr.Meta,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ToHTTPError classifies err for the JSON envelope.
func ToHTTPError(err error) HTTPError {
	var httpErr HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, binder.ErrBodyTooLarge):
		return ErrTooLarge
	case errors.Is(err, binder.ErrInvalidJSON),
		errors.Is(err, binder.ErrMissingContentType),
		errors.Is(err, binder.ErrUnsupportedMediaType),
		errors.Is(err, binder.ErrInvalidQuery):
		return ErrBadRequest.WithDetails(map[string]any{"detail": err.Error()})
	default:
		return ErrInternal
	}
}
