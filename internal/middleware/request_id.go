// Package middleware provides HTTP middleware components.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey is a type for context keys to avoid collisions.
type contextKey string

// RequestIDKey is the context key for request ID.
const RequestIDKey contextKey = "request_id"

// Request id headers, in order of preference.
const (
	RequestIDHeader   = "X-Request-ID"
	ProviderIDHeader  = "I-Twilio-Idempotency-Token"
	maxRequestIDBytes = 128
)

// RequestID injects a request ID into each request.
// An incoming X-Request-ID wins, then the SMS provider's idempotency token,
// so a redelivered webhook logs under the same id. Otherwise a new UUID is used.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := headerID(r, RequestIDHeader)
		if requestID == "" {
			requestID = headerID(r, ProviderIDHeader)
		}
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set(RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func headerID(r *http.Request, name string) string {
	v := r.Header.Get(name)
	if len(v) > maxRequestIDBytes {
		return ""
	}
	return v
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
