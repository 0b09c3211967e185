package inproc

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader is the header a host may use to supply its own request id.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

func requestID(h http.Header) string {
	if id := h.Get(RequestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}

// withRequestID stores the request id in ctx for handlers and loggers.
func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// GetRequestID extracts the request ID from a handler context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
