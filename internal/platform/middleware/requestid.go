// Package middleware holds the HTTP middleware applied in front of the function.
package middleware

import (
	"context"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	// executionIDHeader is set by the Cloud Functions front end on every invocation.
	executionIDHeader = "Function-Execution-Id"

	// maxRequestIDLength limits request ID size to prevent unbounded memory usage.
	maxRequestIDLength = 128
)

// isValidRequestID reports whether id is 1..128 bytes of printable ASCII (0x20-0x7E).
// Anything else could inject fake lines into the structured log.
func isValidRequestID(id string) bool {
	if len(id) == 0 || len(id) > maxRequestIDLength {
		return false
	}
	for i := range len(id) {
		if c := id[i]; c < 0x20 || c > 0x7E {
			return false
		}
	}
	return true
}

// RequestID returns middleware that stores a request identifier on the context
// under chi's RequestIDKey. A valid X-Request-Id wins, then Function-Execution-Id,
// otherwise a UUIDv4 is generated. The identifier is never written to the response.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(chimiddleware.RequestIDHeader)
			if !isValidRequestID(reqID) {
				reqID = r.Header.Get(executionIDHeader)
			}
			if !isValidRequestID(reqID) {
				reqID = uuid.NewString()
			}

			ctx := context.WithValue(r.Context(), chimiddleware.RequestIDKey, reqID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
