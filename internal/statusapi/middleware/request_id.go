package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
)

type contextKey string

// RequestIDKey is the context key carrying the per-request identifier.
const RequestIDKey contextKey = "request-id"

// RequestID assigns each request a short hex identifier, reusing one
// supplied via X-Request-ID, and echoes it back in the response header.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")

			if requestID == "" {
				b := make([]byte, 8)
				if _, err := rand.Read(b); err != nil {
					requestID = "req-error"
				} else {
					requestID = hex.EncodeToString(b)
				}
			}

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)

			w.Header().Set("X-Request-ID", requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
