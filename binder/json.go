// Package binder decodes HTTP request parts into typed request structs.
package binder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// DefaultMaxJSONBytes caps JSON bodies when no explicit limit is given.
const DefaultMaxJSONBytes int64 = 1 << 20

// BindJSON returns a strict JSON body binder: the content type must be
// application/json, unknown fields are rejected, trailing data is an error
// and the body is capped at maxBytes (DefaultMaxJSONBytes when <= 0).
func BindJSON(maxBytes int64) func(r *http.Request, v any) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxJSONBytes
	}
	return func(r *http.Request, v any) error {
		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			return fmt.Errorf("%w: expected application/json", ErrMissingContentType)
		}
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != "application/json" {
			return fmt.Errorf("%w: got %s, expected application/json", ErrUnsupportedMediaType, contentType)
		}

		decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBytes))
		decoder.DisallowUnknownFields()

		if err := decoder.Decode(v); err != nil {
			return jsonError(err, maxBytes)
		}

		var extra json.RawMessage
		switch err := decoder.Decode(&extra); {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return jsonError(err, maxBytes)
		default:
			return fmt.Errorf("%w: unexpected data after JSON object", ErrInvalidJSON)
		}
	}
}

func jsonError(err error, maxBytes int64) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, maxBytes)
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%w: empty body", ErrInvalidJSON)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
}
