package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/wonny/tickersync/internal/infra/database/postgres"
)

// RequestIDHeader is the header name for request ID
const RequestIDHeader = "X-Request-ID"

type ctxKey struct{}

// RequestID middleware adds a unique request ID to each request
// If X-Request-ID header exists, use it; otherwise generate a new one
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)

		// query logs carry the same id
		ctx := context.WithValue(r.Context(), ctxKey{}, requestID)
		ctx = postgres.WithRequestID(ctx, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}
