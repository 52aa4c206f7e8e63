package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/http/httptrace"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/gaborage/finbricks/httpclient/internal/tracking"
	"github.com/gaborage/finbricks/logger"
	"github.com/gaborage/finbricks/notify"
	"github.com/gaborage/finbricks/tokenstore"
	"github.com/gaborage/finbricks/trace"
)

// APIClient implements Client on top of net/http.
type APIClient struct {
	httpClient           *nethttp.Client
	logger               logger.Logger
	config               *Config
	store                tokenstore.Store
	sink                 notify.Sink
	coordinator          *RefreshCoordinator
	policy               retryPolicy
	limiter              *rate.Limiter
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	sleep                func(ctx context.Context, d time.Duration) error
	callCount            int64
}

var _ Client = (*APIClient)(nil)

// Coordinator exposes the refresh coordinator, e.g. to reset it on logout.
func (c *APIClient) Coordinator() *RefreshCoordinator { return c.coordinator }

// Get performs a GET request
func (c *APIClient) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodGet, req)
}

// Post performs a POST request
func (c *APIClient) Post(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPost, req)
}

// Put performs a PUT request
func (c *APIClient) Put(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPut, req)
}

// Patch performs a PATCH request
func (c *APIClient) Patch(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPatch, req)
}

// Delete performs a DELETE request
func (c *APIClient) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodDelete, req)
}

// Do runs one logical call through the auth, refresh, retry and classify
// pipeline. It returns either a response with status < 400 or a
// *ClassifiedError, never both.
func (c *APIClient) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	ctx, traceID := trace.Ensure(ctx)

	if err := c.validateRequest(req); err != nil {
		rc := RequestContext{Method: method}
		if req != nil {
			rc.URL = req.URL
		}
		return nil, c.surface(ctx, newClassified(rc, CategoryUnknown, err))
	}

	rc := c.newRequestContext(method, req)
	ctx, span := tracking.StartCall(ctx, method, rc.URL)
	start := time.Now()
	callCount := atomic.AddInt64(&c.callCount, 1)

	resp, attempts, err := c.execute(ctx, rc, traceID)
	elapsed := time.Since(start)

	outcome, status := tracking.OutcomeOK, 0
	if err != nil {
		outcome, status = string(CategoryOf(err)), StatusCodeOf(err)
	} else {
		status = resp.StatusCode
		resp.Stats = Stats{ElapsedTime: elapsed, Attempts: attempts, CallCount: callCount}
	}
	tracking.RecordRequest(ctx, method, outcome, status, elapsed)
	tracking.EndCall(span, outcome, status, attempts, err)
	return resp, err
}

func (c *APIClient) validateRequest(req *Request) error {
	if req == nil {
		return errors.New("request cannot be nil")
	}
	if req.URL == "" {
		return errors.New("URL cannot be empty")
	}
	if c.config.BaseURL == "" && !isAbsolute(req.URL) {
		return fmt.Errorf("relative URL %q without a base URL", req.URL)
	}
	return nil
}

func (c *APIClient) newRequestContext(method string, req *Request) RequestContext {
	header := make(nethttp.Header, len(req.Headers))
	for k, v := range req.Headers {
		header.Set(k, v)
	}
	return RequestContext{
		Method: method,
		URL:    joinURL(c.config.BaseURL, req.URL),
		Header: header,
		Body:   req.Body,
	}
}

// execute is the attempt loop. Each iteration works on its own copy of rc.
func (c *APIClient) execute(ctx context.Context, rc RequestContext, traceID string) (*Response, int, error) {
	var (
		token    string
		handoff  func()
		attempts int
	)
	for {
		attempts++
		resp, ce := c.attempt(ctx, rc, traceID, token, handoff)
		token, handoff = "", nil
		if ce != nil {
			return nil, attempts, c.surface(ctx, ce)
		}

		switch {
		case resp.StatusCode < nethttp.StatusBadRequest:
			return resp, attempts, nil

		case resp.StatusCode == nethttp.StatusUnauthorized && !rc.AuthRetried:
			rc = rc.withAuthRetried()
			newToken, release, err := c.coordinator.Acquire(ctx)
			if err != nil {
				return nil, attempts, c.surface(ctx, classifyRefresh(rc, err))
			}
			token, handoff = newToken, release

		case c.policy.isTransient(resp.StatusCode) && c.policy.allows(rc):
			rc = rc.nextTransientRetry()
			delay := c.policy.delay(rc.TransientRetryCount)
			c.logger.WithContext(ctx).Warn().
				Str("method", rc.Method).
				Str("url", rc.URL).
				Int("status", resp.StatusCode).
				Int("retry", rc.TransientRetryCount).
				Dur("delay", delay).
				Msg("Transient server error, retrying")
			tracking.RecordRetry(ctx, rc.Method, resp.StatusCode)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, attempts, c.surface(ctx, classifyTransport(rc, err))
			}

		default:
			if resp.StatusCode == nethttp.StatusUnauthorized {
				// Fresh credentials were rejected too; they are of no further use.
				c.coordinator.endSession()
			}
			ce := classifyStatus(rc, resp.StatusCode, resp.Body, c.policy.isTransient(resp.StatusCode))
			return nil, attempts, c.surface(ctx, ce)
		}
	}
}

// attempt sends rc once. token overrides the stored access token; handoff,
// when set, is called as soon as the request has been handed to the transport.
func (c *APIClient) attempt(ctx context.Context, rc RequestContext, traceID, token string, handoff func()) (*Response, *ClassifiedError) {
	if handoff != nil {
		defer handoff()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, classifyTransport(rc, err)
		}
	}

	httpReq, err := c.buildRequest(ctx, rc, token)
	if err != nil {
		return nil, newClassified(rc, CategoryUnknown, err)
	}
	c.logRequest(httpReq, rc.Body, traceID)

	start := time.Now()
	httpResp, err := c.dispatch(httpReq, handoff)
	if err != nil {
		return nil, classifyTransport(rc, err)
	}

	resp, err := c.buildResponse(ctx, httpReq, httpResp)
	if err != nil {
		var ce *ClassifiedError
		if errors.As(err, &ce) {
			return nil, ce
		}
		return nil, newClassified(rc, CategoryUnknown, err)
	}
	resp.Stats.ElapsedTime = time.Since(start)
	c.logResponse(resp, httpReq, traceID)
	return resp, nil
}

// dispatch sends req. handoff fires once the request has been written to
// the connection or the round trip returned, whichever comes first, and
// dispatch returns only after handoff has finished.
func (c *APIClient) dispatch(req *nethttp.Request, handoff func()) (*nethttp.Response, error) {
	if handoff == nil {
		return c.httpClient.Do(req)
	}

	wrote := make(chan struct{})
	var once sync.Once
	signal := func() { once.Do(func() { close(wrote) }) }

	req = req.WithContext(httptrace.WithClientTrace(req.Context(), &httptrace.ClientTrace{
		WroteRequest: func(httptrace.WroteRequestInfo) { signal() },
	}))

	released := make(chan struct{})
	go func() {
		defer close(released)
		<-wrote
		handoff()
	}()

	resp, err := c.httpClient.Do(req)
	signal()
	<-released
	return resp, err
}

func (c *APIClient) buildRequest(ctx context.Context, rc RequestContext, token string) (*nethttp.Request, error) {
	var body io.Reader
	if rc.Body != nil {
		body = bytes.NewReader(rc.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, rc.Method, rc.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}
	for key, values := range rc.Header {
		httpReq.Header[key] = append([]string(nil), values...)
	}
	if httpReq.Header.Get("Content-Type") == "" && rc.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if token == "" {
		token = currentAccessToken(ctx, c.store, c.logger)
	}
	applyBearer(httpReq, token)

	for _, interceptor := range c.requestInterceptors {
		if err := interceptor(ctx, httpReq); err != nil {
			return nil, fmt.Errorf("request interceptor failed: %w", err)
		}
	}
	return httpReq, nil
}

func (c *APIClient) buildResponse(ctx context.Context, httpReq *nethttp.Request, httpResp *nethttp.Response) (*Response, error) {
	defer httpResp.Body.Close()

	for _, interceptor := range c.responseInterceptors {
		if err := interceptor(ctx, httpReq, httpResp); err != nil {
			return nil, fmt.Errorf("response interceptor failed: %w", err)
		}
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		rc := RequestContext{Method: httpReq.Method, URL: httpReq.URL.String()}
		return nil, classifyTransport(rc, fmt.Errorf("failed to read response body: %w", err))
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Headers:    httpResp.Header,
	}, nil
}

func isAbsolute(u string) bool {
	return strings.Contains(u, "://")
}
