package httpclient

import (
	"context"
	nethttp "net/http"

	"github.com/gaborage/finbricks/trace"
)

// HeaderXRequestID is the header carrying the per-call request id
const HeaderXRequestID = trace.HeaderXRequestID

// WithTraceID pins the request id used for calls made with ctx
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return trace.WithTraceID(ctx, traceID)
}

// NewTraceIDInterceptor sets X-Request-ID from the context unless the
// request already carries one. Every attempt of a call reuses the same id.
func NewTraceIDInterceptor() RequestInterceptor {
	return NewTraceIDInterceptorFor(HeaderXRequestID)
}

// NewTraceIDInterceptorFor is NewTraceIDInterceptor with a custom header name
func NewTraceIDInterceptorFor(header string) RequestInterceptor {
	if header == "" {
		header = HeaderXRequestID
	}
	return func(ctx context.Context, req *nethttp.Request) error {
		if req.Header.Get(header) == "" {
			req.Header.Set(header, trace.EnsureTraceID(ctx))
		}
		return nil
	}
}
