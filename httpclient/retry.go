package httpclient

import (
	"context"
	nethttp "net/http"
	"slices"
	"time"
)

const (
	// DefaultMaxRetries bounds transient retries per logical call
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the unit of the linear backoff
	DefaultBaseDelay = 1 * time.Second

	// HeaderIdempotencyKey marks a non-idempotent request as safe to retry
	HeaderIdempotencyKey = "Idempotency-Key"
)

// DefaultTransientStatuses are retried with backoff
var DefaultTransientStatuses = []int{
	nethttp.StatusBadGateway,
	nethttp.StatusServiceUnavailable,
	nethttp.StatusGatewayTimeout,
}

type retryPolicy struct {
	maxRetries    int
	baseDelay     time.Duration
	statuses      []int
	unsafeMethods bool
}

func (p retryPolicy) isTransient(status int) bool {
	return slices.Contains(p.statuses, status)
}

// allows reports whether rc may be resubmitted. Methods that can change
// server state twice are only retried with an idempotency key.
func (p retryPolicy) allows(rc RequestContext) bool {
	if rc.TransientRetryCount >= p.maxRetries {
		return false
	}
	if p.unsafeMethods {
		return true
	}
	switch rc.Method {
	case nethttp.MethodGet, nethttp.MethodHead, nethttp.MethodOptions, nethttp.MethodPut, nethttp.MethodDelete:
		return true
	}
	return rc.Header.Get(HeaderIdempotencyKey) != ""
}

// delay is linear: retry k waits baseDelay * k.
func (p retryPolicy) delay(retry int) time.Duration {
	return p.baseDelay * time.Duration(retry)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
