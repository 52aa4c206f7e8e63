package httpclient

import nethttp "net/http"

// RequestContext is one logical call plus its retry bookkeeping. It is
// passed by value: each attempt works on its own copy, so the flags only
// change through withAuthRetried and nextTransientRetry.
type RequestContext struct {
	Method string
	URL    string
	Header nethttp.Header
	Body   []byte

	// AuthRetried is set once the call has gone through a token refresh
	AuthRetried bool
	// TransientRetryCount counts retries after transient statuses
	TransientRetryCount int
}

func (rc RequestContext) withAuthRetried() RequestContext {
	rc.AuthRetried = true
	return rc
}

func (rc RequestContext) nextTransientRetry() RequestContext {
	rc.TransientRetryCount++
	return rc
}
