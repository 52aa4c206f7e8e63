package httpclient

import (
	"context"
	nethttp "net/http"
	"time"
)

// Client defines the API client used by the front end.
type Client interface {
	Get(ctx context.Context, req *Request) (*Response, error)
	Post(ctx context.Context, req *Request) (*Response, error)
	Put(ctx context.Context, req *Request) (*Response, error)
	Patch(ctx context.Context, req *Request) (*Response, error)
	Delete(ctx context.Context, req *Request) (*Response, error)
	Do(ctx context.Context, method string, req *Request) (*Response, error)
}

// Request describes one logical call. URL may be absolute or relative to the
// client's base URL.
type Request struct {
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is a successful (status < 400) reply
type Response struct {
	StatusCode int
	Body       []byte
	Headers    nethttp.Header
	Stats      Stats
}

// Stats describes how the response was obtained
type Stats struct {
	ElapsedTime time.Duration
	// Attempts counts dispatches including retries and the refresh replay
	Attempts  int
	CallCount int64
}

// RequestInterceptor runs before every attempt, after the bearer token is attached.
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor runs after every attempt that produced a response.
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// SessionController ends the user session when credentials can no longer be renewed.
type SessionController interface {
	Logout()
}

// SessionFunc adapts a function to SessionController
type SessionFunc func()

func (f SessionFunc) Logout() { f() }

// Config holds the client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration

	// MaxRetries bounds transient-status retries per logical call
	MaxRetries int
	// BaseDelay is multiplied by the retry number: 1x, 2x, 3x...
	BaseDelay          time.Duration
	TransientStatuses  []int
	RetryUnsafeMethods bool

	RefreshPath    string
	RefreshTimeout time.Duration

	// RateLimit is requests per second; 0 disables limiting
	RateLimit float64
	RateBurst int

	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	DefaultHeaders       map[string]string

	// LogPayloads enables debug-level logging of headers and body previews
	LogPayloads bool
	// MaxPayloadLogBytes caps the body bytes logged when LogPayloads is enabled
	MaxPayloadLogBytes int
}
