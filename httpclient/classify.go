package httpclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/gaborage/finbricks/notify"
)

func newClassified(rc RequestContext, c Category, cause error) *ClassifiedError {
	return &ClassifiedError{
		Category: c,
		Message:  messageOf(c),
		Cause:    cause,
		Method:   rc.Method,
		URL:      rc.URL,
	}
}

// classifyStatus maps a terminal non-success status. 401 only reaches here
// after the request was already refresh-retried.
func classifyStatus(rc RequestContext, status int, body []byte, transient bool) *ClassifiedError {
	var c Category
	switch {
	case status == http.StatusUnauthorized:
		c = CategoryUnauthorized
	case status == http.StatusForbidden:
		c = CategoryForbidden
	case status == http.StatusNotFound:
		c = CategoryNotFound
	case transient:
		c = CategoryTransientServer
	default:
		c = CategoryUnknown
	}
	ce := newClassified(rc, c, nil)
	ce.StatusCode = status
	ce.Body = body
	return ce
}

// classifyTransport maps a dispatch that produced no response. A caller that
// cancelled its own context is not told about it.
func classifyTransport(rc RequestContext, err error) *ClassifiedError {
	ce := newClassified(rc, CategoryNetwork, err)
	ce.notified = errors.Is(err, context.Canceled)
	return ce
}

// classifyRefresh maps the error a request received from the refresh
// coordinator. Refresh failures were already announced by the coordinator.
func classifyRefresh(rc RequestContext, err error) *ClassifiedError {
	var refreshErr *RefreshError
	switch {
	case errors.As(err, &refreshErr), errors.Is(err, ErrLoggedOut):
		ce := newClassified(rc, CategoryUnauthorized, err)
		ce.StatusCode = http.StatusUnauthorized
		ce.notified = true
		return ce
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return classifyTransport(rc, err)
	default:
		ce := newClassified(rc, CategoryUnauthorized, err)
		ce.StatusCode = http.StatusUnauthorized
		return ce
	}
}

// surface pushes ce to the sink unless it was already announced and logs it.
func (c *APIClient) surface(ctx context.Context, ce *ClassifiedError) error {
	if !ce.notified {
		c.sink.Push(notify.Notification{Message: ce.Message, Severity: ce.Severity()})
		ce.notified = true
	}
	ev := c.logger.WithContext(ctx).Warn().
		Str("category", string(ce.Category)).
		Str("method", ce.Method).
		Str("url", ce.URL)
	if ce.StatusCode != 0 {
		ev = ev.Int("status", ce.StatusCode)
	}
	if ce.Cause != nil {
		ev = ev.Err(ce.Cause)
	}
	ev.Msg("API call failed")
	return ce
}
