// Package middleware provides HTTP middleware for the SkyLoop API.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// maxRequestIDLen bounds caller-supplied IDs so they stay usable as a log
// field and span attribute.
const maxRequestIDLen = 64

// requestIDKey is the context key for the request ID.
type requestIDKey struct{}

// RequestID tags every request with an ID that follows it through logs,
// spans, and problem responses. A caller-supplied X-Request-Id is kept when
// it is a clean identifier, so clients can correlate a search across their
// own systems and ours; anything else is replaced with a generated req_ ID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if !validRequestID(requestID) {
			requestID = "req_" + uuid.New().String()[:22]
		}

		w.Header().Set("X-Request-Id", requestID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validRequestID accepts non-empty identifiers made of the characters a
// UUID or similar token would use. Rejecting the rest keeps header-injected
// garbage out of structured logs.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
