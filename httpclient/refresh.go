package httpclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gaborage/finbricks/httpclient/internal/tracking"
	"github.com/gaborage/finbricks/logger"
	"github.com/gaborage/finbricks/notify"
	"github.com/gaborage/finbricks/tokenstore"
)

// DefaultRefreshTimeout bounds one refresh call
const DefaultRefreshTimeout = 10 * time.Second

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (tokenstore.Credentials, error)
}

// RefresherFunc adapts a function to Refresher
type RefresherFunc func(ctx context.Context, refreshToken string) (tokenstore.Credentials, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (tokenstore.Credentials, error) {
	return f(ctx, refreshToken)
}

type refreshResult struct {
	token string
	err   error
}

// waiter is a request parked behind an in-flight refresh. result is buffered
// so delivery never blocks; done closes once the waiter has handed its replay
// to the transport, or gave up.
type waiter struct {
	result chan refreshResult
	done   chan struct{}
	once   sync.Once
}

func newWaiter() *waiter {
	return &waiter{result: make(chan refreshResult, 1), done: make(chan struct{})}
}

func (w *waiter) ack() { w.once.Do(func() { close(w.done) }) }

// RefreshCoordinator guarantees at most one refresh call in flight per
// generation. Requests that hit 401 during a refresh queue up and are resumed
// one at a time, in arrival order, each handing its replay to the transport
// before the next one is resumed.
//
// Reset starts a new generation without waiting for the old leader, so a 401
// arriving right after a logout may start a refresh while the previous call
// is still running. The old call's result is discarded. After a logout the
// store holds no refresh token, so the new leader fails without a network
// call.
//
// Invariant: when refreshing is false the queue is empty.
type RefreshCoordinator struct {
	refresher Refresher
	store     tokenstore.Store
	session   SessionController
	sink      notify.Sink
	log       logger.Logger
	timeout   time.Duration

	mu         sync.Mutex
	refreshing bool
	queue      []*waiter
	generation uint64
	hooks      []func(accessToken string)
}

// CoordinatorOptions configures a RefreshCoordinator
type CoordinatorOptions struct {
	Refresher Refresher
	Store     tokenstore.Store
	Session   SessionController
	Sink      notify.Sink
	Logger    logger.Logger
	Timeout   time.Duration
}

// NewRefreshCoordinator creates an idle coordinator.
func NewRefreshCoordinator(opts CoordinatorOptions) *RefreshCoordinator {
	c := &RefreshCoordinator{
		refresher: opts.Refresher,
		store:     opts.Store,
		session:   opts.Session,
		sink:      opts.Sink,
		log:       opts.Logger,
		timeout:   opts.Timeout,
	}
	if c.store == nil {
		c.store = tokenstore.NewMemoryStore()
	}
	if c.session == nil {
		c.session = clearStoreSession(c.store)
	}
	if c.sink == nil {
		c.sink = notify.Discard
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	if c.timeout <= 0 {
		c.timeout = DefaultRefreshTimeout
	}
	c.log = c.log.WithFields(map[string]any{"component": "refresh"})
	return c
}

func clearStoreSession(store tokenstore.Store) SessionController {
	return SessionFunc(func() {
		_ = tokenstore.Clear(context.Background(), store)
	})
}

// OnTokenRefreshed registers fn to receive every new access token before
// parked requests are replayed.
func (c *RefreshCoordinator) OnTokenRefreshed(fn func(accessToken string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// State reports whether a refresh is in flight and how many requests wait on it.
func (c *RefreshCoordinator) State() (refreshing bool, queued int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing, len(c.queue)
}

// Acquire is called by a request that received 401 and has not been
// refresh-retried. It returns the token to replay with and a release func
// the caller must invoke once the replay has been handed to the transport.
// The first caller performs the refresh; later callers wait for it.
func (c *RefreshCoordinator) Acquire(ctx context.Context) (string, func(), error) {
	c.mu.Lock()
	if c.refreshing {
		w := c.enqueueLocked()
		c.mu.Unlock()
		tracking.RecordQueued(ctx)
		return c.wait(ctx, w)
	}
	c.refreshing = true
	gen := c.generation
	c.mu.Unlock()

	return c.lead(ctx, gen)
}

// Reset rejects every waiter with err, returns to idle and discards the
// result of any refresh still in flight. Used when the user logs out.
func (c *RefreshCoordinator) Reset(err error) {
	c.mu.Lock()
	c.generation++
	waiters := c.queue
	c.queue = nil
	c.refreshing = false
	c.mu.Unlock()

	c.rejectAll(waiters, err)
}

func (c *RefreshCoordinator) enqueueLocked() *waiter {
	w := newWaiter()
	c.queue = append(c.queue, w)
	return w
}

func (c *RefreshCoordinator) wait(ctx context.Context, w *waiter) (string, func(), error) {
	select {
	case r := <-w.result:
		if r.err != nil {
			w.ack()
			return "", noop, r.err
		}
		return r.token, w.ack, nil
	case <-ctx.Done():
		c.abandon(w)
		return "", noop, ctx.Err()
	}
}

// abandon drops a waiter whose caller went away.
func (c *RefreshCoordinator) abandon(w *waiter) {
	c.mu.Lock()
	for i, q := range c.queue {
		if q == w {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	w.ack()
}

func (c *RefreshCoordinator) lead(ctx context.Context, gen uint64) (string, func(), error) {
	// The refresh serves every parked request, so it outlives the caller
	// that happened to trigger it.
	detached := context.WithoutCancel(ctx)

	refreshToken, err := c.store.Get(detached, tokenstore.RefreshTokenKey)
	if errors.Is(err, tokenstore.ErrNotFound) || (err == nil && refreshToken == "") {
		tracking.RecordRefresh(ctx, tracking.RefreshNoToken)
		c.log.Info().Msg("No refresh token stored, ending session")
		return "", noop, c.fail(gen, ErrNoRefreshToken)
	}
	if err != nil {
		tracking.RecordRefresh(ctx, tracking.RefreshFailure)
		return "", noop, c.fail(gen, err)
	}

	c.log.Info().Msg("Refreshing access token")
	start := time.Now()

	rctx, cancel := context.WithTimeout(detached, c.timeout)
	creds, err := c.refresher.Refresh(rctx, refreshToken)
	if err == nil && creds.AccessToken == "" {
		err = ErrEmptyAccessToken
	}
	if err == nil {
		if creds.RefreshToken == "" {
			creds.RefreshToken = refreshToken
		}
		if c.stale(gen) {
			cancel()
			return c.discard(ctx)
		}
		err = tokenstore.Save(rctx, c.store, creds)
	}
	cancel()
	if err != nil {
		tracking.RecordRefresh(ctx, tracking.RefreshFailure)
		c.log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Token refresh failed")
		return "", noop, c.fail(gen, err)
	}

	// A logout that raced with Save may have cleared the store first.
	if c.stale(gen) {
		_ = tokenstore.Clear(detached, c.store)
		return c.discard(ctx)
	}

	tracking.RecordRefresh(ctx, tracking.RefreshSuccess)
	c.log.Info().Dur("elapsed", time.Since(start)).Msg("Access token refreshed")

	c.mu.Lock()
	hooks := append([]func(string){}, c.hooks...)
	c.mu.Unlock()
	for _, fn := range hooks {
		fn(creds.AccessToken)
	}

	c.resolveAll(gen, creds.AccessToken, false)

	var once sync.Once
	release := func() {
		once.Do(func() { c.resolveAll(gen, creds.AccessToken, true) })
	}
	return creds.AccessToken, release, nil
}

func (c *RefreshCoordinator) stale(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen != c.generation
}

func (c *RefreshCoordinator) discard(ctx context.Context) (string, func(), error) {
	tracking.RecordRefresh(ctx, tracking.RefreshDiscarded)
	c.log.Info().Msg("Discarding refreshed tokens after logout")
	return "", noop, ErrLoggedOut
}

// resolveAll resumes queued waiters in FIFO order, each only after the
// previous one handed off its replay. With final set it also returns the
// coordinator to idle once the queue is empty.
func (c *RefreshCoordinator) resolveAll(gen uint64, token string, final bool) {
	for {
		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return
		}
		if len(c.queue) == 0 {
			if final {
				c.refreshing = false
			}
			c.mu.Unlock()
			return
		}
		w := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		w.result <- refreshResult{token: token}
		<-w.done
	}
}

// fail ends a refresh attempt: every waiter is rejected, the session is
// logged out once and the user is told once.
func (c *RefreshCoordinator) fail(gen uint64, cause error) error {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return ErrLoggedOut
	}
	waiters := c.queue
	c.queue = nil
	c.refreshing = false
	c.mu.Unlock()

	err := &RefreshError{Cause: cause}
	c.rejectAll(waiters, err)

	c.session.Logout()
	c.sink.Push(notify.Notification{Message: MessageSessionExpired, Severity: notify.SeverityWarning})
	return err
}

// endSession logs the user out after a replay with refreshed credentials was
// still rejected. The caller surfaces the error itself.
func (c *RefreshCoordinator) endSession() {
	c.log.Warn().Msg("Refreshed access token rejected, ending session")
	c.session.Logout()
}

func (c *RefreshCoordinator) rejectAll(waiters []*waiter, err error) {
	for _, w := range waiters {
		w.result <- refreshResult{err: err}
	}
}

func noop() {}
