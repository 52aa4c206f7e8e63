// Package trace carries the per-call request id that finbricks propagates in
// the X-Request-ID header. One id is kept for a logical call across every
// retry and refresh-triggered replay so backend logs can be correlated.
package trace

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	traceIDKey contextKey = "trace_id"

	// HeaderXRequestID is the header used for request id propagation
	HeaderXRequestID = "X-Request-ID"
)

// WithTraceID stores traceID in ctx
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// IDFromContext returns the trace id stored in ctx, if any
func IDFromContext(ctx context.Context) (string, bool) {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok && traceID != "" {
		return traceID, true
	}
	return "", false
}

// EnsureTraceID returns the id stored in ctx or a fresh uuid
func EnsureTraceID(ctx context.Context) string {
	if traceID, ok := IDFromContext(ctx); ok {
		return traceID
	}
	return uuid.New().String()
}

// Ensure returns a context that is guaranteed to carry a trace id, together with that id.
func Ensure(ctx context.Context) (context.Context, string) {
	if traceID, ok := IDFromContext(ctx); ok {
		return ctx, traceID
	}
	traceID := uuid.New().String()
	return WithTraceID(ctx, traceID), traceID
}
