package ratelimiter

import (
	"context"
	"hash/fnv"
	"net/http"
	"strconv"
	"strings"
)

// maxKeyLength is the longest key stored verbatim; longer keys are hashed.
const maxKeyLength = 64

// KeyFunc extracts a rate limit key from the request. An empty key skips
// limiting for that request.
type KeyFunc func(r *http.Request) string

// Composite joins the non-empty keys of several extractors.
// Keys longer than 64 chars are hashed with FNV-1a.
func Composite(keyFuncs ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(keyFuncs))
		for _, fn := range keyFuncs {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}
		if len(parts) == 0 {
			return ""
		}

		combined := strings.Join(parts, ":")
		if len(combined) <= maxKeyLength {
			return combined
		}
		h := fnv.New64a()
		_, _ = h.Write([]byte(combined))
		return strconv.FormatUint(h.Sum64(), 36)
	}
}

// Limiter is the subset of Bucket used by the middleware.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

type middlewareOptions struct {
	onDeny  func(http.ResponseWriter, *http.Request, *Result)
	onError func(http.ResponseWriter, *http.Request, error)
}

// MiddlewareOption customizes Middleware.
type MiddlewareOption func(*middlewareOptions)

// WithDenyHandler replaces the default plain-text 429 response.
// Rate limit headers are already set when it runs.
func WithDenyHandler(fn func(http.ResponseWriter, *http.Request, *Result)) MiddlewareOption {
	return func(o *middlewareOptions) {
		o.onDeny = fn
	}
}

// WithErrorHandler replaces the default 500 response on store failures.
func WithErrorHandler(fn func(http.ResponseWriter, *http.Request, error)) MiddlewareOption {
	return func(o *middlewareOptions) {
		o.onError = fn
	}
}

// Middleware limits requests per key and sets the X-RateLimit-* headers.
func Middleware(limiter Limiter, keyFunc KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	o := &middlewareOptions{
		onDeny: func(w http.ResponseWriter, _ *http.Request, _ *Result) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		},
		onError: func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		},
	}
	for _, opt := range opts {
		opt(o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				o.onError(w, r, err)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(0, result.Remaining)))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed() {
				if secs := int(result.RetryAfter().Seconds()); secs > 0 {
					h.Set("Retry-After", strconv.Itoa(secs))
				}
				o.onDeny(w, r, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
