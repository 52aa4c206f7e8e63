package httpclient

import (
	"maps"
	nethttp "net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/gaborage/finbricks/logger"
	"github.com/gaborage/finbricks/notify"
	"github.com/gaborage/finbricks/tokenstore"
)

const (
	// DefaultTimeout is the per-attempt request timeout
	DefaultTimeout = 10 * time.Second

	defaultMaxPayloadLogBytes = 1024
)

// Builder provides a fluent interface for configuring the API client
type Builder struct {
	config    *Config
	logger    logger.Logger
	store     tokenstore.Store
	session   SessionController
	sink      notify.Sink
	refresher Refresher
	transport nethttp.RoundTripper
}

// NewBuilder creates a builder with the default retry policy and timeouts.
func NewBuilder(log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{
		config: &Config{
			Timeout:            DefaultTimeout,
			MaxRetries:         DefaultMaxRetries,
			BaseDelay:          DefaultBaseDelay,
			TransientStatuses:  append([]int(nil), DefaultTransientStatuses...),
			RefreshPath:        DefaultRefreshPath,
			RefreshTimeout:     DefaultRefreshTimeout,
			DefaultHeaders:     make(map[string]string),
			MaxPayloadLogBytes: defaultMaxPayloadLogBytes,
		},
		logger: log,
	}
}

// WithBaseURL sets the URL relative request paths are resolved against
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithTimeout sets the per-attempt timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetries sets the transient retry bound and the linear backoff unit
func (b *Builder) WithRetries(maxRetries int, baseDelay time.Duration) *Builder {
	b.config.MaxRetries = maxRetries
	b.config.BaseDelay = baseDelay
	return b
}

// WithTransientStatuses replaces the set of statuses retried with backoff
func (b *Builder) WithTransientStatuses(statuses ...int) *Builder {
	b.config.TransientStatuses = append([]int(nil), statuses...)
	return b
}

// WithRetryUnsafeMethods also retries POST and PATCH without an idempotency key
func (b *Builder) WithRetryUnsafeMethods(enabled bool) *Builder {
	b.config.RetryUnsafeMethods = enabled
	return b
}

// WithRefreshEndpoint sets the path of the token refresh endpoint and the
// timeout of one refresh call.
func (b *Builder) WithRefreshEndpoint(path string, timeout time.Duration) *Builder {
	b.config.RefreshPath = path
	b.config.RefreshTimeout = timeout
	return b
}

// WithRefresher replaces the HTTP refresh endpoint call
func (b *Builder) WithRefresher(r Refresher) *Builder {
	b.refresher = r
	return b
}

// WithTokenStore sets where credentials are read from and written to
func (b *Builder) WithTokenStore(store tokenstore.Store) *Builder {
	b.store = store
	return b
}

// WithSession sets the controller logged out when refresh fails
func (b *Builder) WithSession(session SessionController) *Builder {
	b.session = session
	return b
}

// WithNotifier sets the sink user-facing failures are pushed to
func (b *Builder) WithNotifier(sink notify.Sink) *Builder {
	b.sink = sink
	return b
}

// WithTransport sets the round tripper used for API and refresh calls
func (b *Builder) WithTransport(rt nethttp.RoundTripper) *Builder {
	b.transport = rt
	return b
}

// WithRateLimit caps outgoing attempts at rps with the given burst
func (b *Builder) WithRateLimit(rps float64, burst int) *Builder {
	b.config.RateLimit = rps
	b.config.RateBurst = burst
	return b
}

// WithDefaultHeader adds a header sent with every request
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithPayloadLogging logs headers and up to maxBytes of every body at debug level
func (b *Builder) WithPayloadLogging(enabled bool, maxBytes int) *Builder {
	b.config.LogPayloads = enabled
	if maxBytes > 0 {
		b.config.MaxPayloadLogBytes = maxBytes
	}
	return b
}

// Build creates the client together with its refresh coordinator.
func (b *Builder) Build() *APIClient {
	cfg := *b.config
	cfg.DefaultHeaders = maps.Clone(b.config.DefaultHeaders)

	store := b.store
	if store == nil {
		store = tokenstore.NewMemoryStore()
	}
	sink := b.sink
	if sink == nil {
		sink = notify.Discard
	}

	httpClient := &nethttp.Client{Timeout: cfg.Timeout, Transport: b.transport}

	refresher := b.refresher
	if refresher == nil {
		refresher = NewEndpointRefresher(joinURL(cfg.BaseURL, cfg.RefreshPath), httpClient)
	}

	c := &APIClient{
		httpClient: httpClient,
		logger:     b.logger,
		config:     &cfg,
		store:      store,
		sink:       sink,
		policy: retryPolicy{
			maxRetries:    cfg.MaxRetries,
			baseDelay:     cfg.BaseDelay,
			statuses:      cfg.TransientStatuses,
			unsafeMethods: cfg.RetryUnsafeMethods,
		},
		requestInterceptors:  append([]RequestInterceptor{NewTraceIDInterceptor()}, cfg.RequestInterceptors...),
		responseInterceptors: cfg.ResponseInterceptors,
		sleep:                sleepContext,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	c.coordinator = NewRefreshCoordinator(CoordinatorOptions{
		Refresher: refresher,
		Store:     store,
		Session:   b.session,
		Sink:      sink,
		Logger:    b.logger,
		Timeout:   cfg.RefreshTimeout,
	})
	return c
}

// joinURL resolves path against base unless path is already absolute.
func joinURL(base, path string) string {
	if base == "" || isAbsolute(path) {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
