package httpclient

import (
	"context"
	"errors"
	"io"
	"maps"
	nethttp "net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gaborage/finbricks/logger"
	"github.com/gaborage/finbricks/notify"
	"github.com/gaborage/finbricks/tokenstore"
)

const (
	testBaseURL      = "https://api.finbricks.test"
	testRefreshPath  = "/auth/refresh"
	oldAccessToken   = "T1"
	newAccessToken   = "T2"
	testRefreshToken = "R1"
)

type roundTripperFunc func(*nethttp.Request) (*nethttp.Response, error)

func (f roundTripperFunc) RoundTrip(req *nethttp.Request) (*nethttp.Response, error) {
	return f(req)
}

func respond(req *nethttp.Request, status int, body string) *nethttp.Response {
	return &nethttp.Response{
		StatusCode: status,
		Status:     nethttp.StatusText(status),
		Header:     nethttp.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

type recordedRequest struct {
	method    string
	path      string
	auth      string
	requestID string
	body      string
}

// fakeAPI is an in-process backend. Handlers run on the caller's goroutine.
type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	handle   func(req *nethttp.Request) (*nethttp.Response, error)
}

func (f *fakeAPI) RoundTrip(req *nethttp.Request) (*nethttp.Response, error) {
	var body string
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
	}
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		method:    req.Method,
		path:      req.URL.Path,
		auth:      req.Header.Get(headerAuthorization),
		requestID: req.Header.Get(HeaderXRequestID),
		body:      body,
	})
	f.mu.Unlock()
	return f.handle(req)
}

func (f *fakeAPI) recorded(filter func(recordedRequest) bool) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedRequest
	for _, r := range f.requests {
		if filter == nil || filter(r) {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeAPI) refreshCalls() int {
	return len(f.recorded(func(r recordedRequest) bool { return r.path == testRefreshPath }))
}

// tokenGated answers 401 unless the request carries newAccessToken, and
// answers refresh calls once gate is closed.
func tokenGated(gate <-chan struct{}, refreshStatus int, refreshBody string) func(*nethttp.Request) (*nethttp.Response, error) {
	return func(req *nethttp.Request) (*nethttp.Response, error) {
		if req.URL.Path == testRefreshPath {
			<-gate
			return respond(req, refreshStatus, refreshBody), nil
		}
		if req.Header.Get(headerAuthorization) != "Bearer "+newAccessToken {
			return respond(req, nethttp.StatusUnauthorized, `{"error":"expired"}`), nil
		}
		return respond(req, nethttp.StatusOK, `{"path":"`+req.URL.Path+`"}`), nil
	}
}

type recordingSink struct {
	mu   sync.Mutex
	seen []notify.Notification
}

func (s *recordingSink) Push(n notify.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, n)
}

func (s *recordingSink) all() []notify.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Notification(nil), s.seen...)
}

type countingSession struct {
	logouts atomic.Int32
	onLog   func()
}

func (s *countingSession) Logout() {
	s.logouts.Add(1)
	if s.onLog != nil {
		s.onLog()
	}
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

type harness struct {
	client  *APIClient
	api     *fakeAPI
	store   *tokenstore.MemoryStore
	sink    *recordingSink
	session *countingSession
	sleeper *recordingSleeper
}

type harnessOption func(*Builder)

func newHarness(t *testing.T, handle func(*nethttp.Request) (*nethttp.Response, error), creds tokenstore.Credentials, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		api:     &fakeAPI{handle: handle},
		store:   tokenstore.NewMemoryStore(),
		sink:    &recordingSink{},
		session: &countingSession{},
		sleeper: &recordingSleeper{},
	}
	require.NoError(t, tokenstore.Save(context.Background(), h.store, creds))
	h.session.onLog = func() { _ = tokenstore.Clear(context.Background(), h.store) }

	b := NewBuilder(logger.Nop()).
		WithBaseURL(testBaseURL).
		WithTransport(h.api).
		WithTokenStore(h.store).
		WithSession(h.session).
		WithNotifier(h.sink)
	for _, opt := range opts {
		opt(b)
	}
	h.client = b.Build()
	h.client.sleep = h.sleeper.sleep
	return h
}

func defaultCreds() tokenstore.Credentials {
	return tokenstore.Credentials{AccessToken: oldAccessToken, RefreshToken: testRefreshToken}
}

// waitQueued blocks until n requests are parked behind the refresh.
func waitQueued(t *testing.T, c *RefreshCoordinator, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		refreshing, queued := c.State()
		return refreshing && queued == n
	}, 2*time.Second, time.Millisecond)
}

// fakeLogEvent and fakeLogger capture log entries for assertions.
type fakeLogEvent struct {
	logger *fakeLogger
	level  string
	fields map[string]any
}

func (e *fakeLogEvent) Msg(msg string) {
	e.logger.mu.Lock()
	defer e.logger.mu.Unlock()
	e.logger.events = append(e.logger.events, loggedEvent{level: e.level, fields: maps.Clone(e.fields), message: msg})
}

func (e *fakeLogEvent) Msgf(format string, _ ...any) { e.Msg(format) }

func (e *fakeLogEvent) Err(err error) logger.LogEvent {
	e.fields["error"] = err
	return e
}

func (e *fakeLogEvent) Str(key, value string) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Int(key string, value int) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Int64(key string, value int64) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Bool(key string, value bool) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Dur(key string, d time.Duration) logger.LogEvent {
	e.fields[key] = d
	return e
}

func (e *fakeLogEvent) Interface(key string, i any) logger.LogEvent {
	e.fields[key] = i
	return e
}

func (e *fakeLogEvent) Bytes(key string, val []byte) logger.LogEvent {
	e.fields[key] = val
	return e
}

type loggedEvent struct {
	level   string
	fields  map[string]any
	message string
}

type fakeLogger struct {
	mu     sync.Mutex
	events []loggedEvent
}

func (l *fakeLogger) event(level string) logger.LogEvent {
	return &fakeLogEvent{logger: l, level: level, fields: make(map[string]any)}
}

func (l *fakeLogger) Debug() logger.LogEvent                  { return l.event("debug") }
func (l *fakeLogger) Info() logger.LogEvent                   { return l.event("info") }
func (l *fakeLogger) Warn() logger.LogEvent                   { return l.event("warn") }
func (l *fakeLogger) Error() logger.LogEvent                  { return l.event("error") }
func (l *fakeLogger) Fatal() logger.LogEvent                  { return l.event("fatal") }
func (l *fakeLogger) WithContext(_ any) logger.Logger         { return l }
func (l *fakeLogger) WithFields(map[string]any) logger.Logger { return l }

func (l *fakeLogger) byMessage(msg string) []loggedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []loggedEvent
	for _, e := range l.events {
		if e.message == msg {
			out = append(out, e)
		}
	}
	return out
}

var errBoom = errors.New("boom")
