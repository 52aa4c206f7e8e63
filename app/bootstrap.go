package app

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/redis/go-redis/v9"

	"github.com/gaborage/finbricks/config"
	"github.com/gaborage/finbricks/httpclient"
	"github.com/gaborage/finbricks/logger"
	"github.com/gaborage/finbricks/notify"
	"github.com/gaborage/finbricks/observability"
	"github.com/gaborage/finbricks/session"
	"github.com/gaborage/finbricks/tokenstore"
)

const connectTimeout = 5 * time.Second

// appBootstrap handles the initialization sequence for creating an App instance.
// Resources that need closing are collected in closers, in creation order.
type appBootstrap struct {
	cfg     *config.Config
	log     logger.Logger
	opts    *Options
	closers []namedCloser
}

func newAppBootstrap(cfg *config.Config, log logger.Logger, opts *Options) *appBootstrap {
	return &appBootstrap{cfg: cfg, log: log, opts: opts}
}

func (b *appBootstrap) track(name string, c interface{ Close() error }) {
	b.closers = append(b.closers, namedCloser{name: name, closer: c})
}

// telemetry installs the OpenTelemetry providers the client reports to.
// It must run before the client is built so request spans are exported.
func (b *appBootstrap) telemetry() error {
	oc := b.cfg.Observability
	if !oc.Enabled {
		return nil
	}
	provider, err := b.opts.providerFactory()(&observability.Config{
		Enabled:         true,
		ServiceName:     oc.ServiceName,
		Environment:     oc.Environment,
		Endpoint:        oc.Endpoint,
		Protocol:        oc.Protocol,
		Insecure:        oc.Insecure,
		Headers:         oc.Headers,
		SampleRate:      oc.SampleRate,
		MetricsInterval: oc.Interval,
	})
	if err != nil {
		return err
	}
	b.log.Info().
		Str("endpoint", oc.Endpoint).
		Str("protocol", oc.Protocol).
		Msg("Exporting telemetry")
	b.track("telemetry provider", closeFunc(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		return provider.Shutdown(ctx)
	}))
	return nil
}

// tokenStore creates the configured credential backend.
func (b *appBootstrap) tokenStore(ctx context.Context) (tokenstore.Store, error) {
	tc := b.cfg.TokenStore
	switch tc.Backend {
	case config.StoreMemory, "":
		return tokenstore.NewMemoryStore(), nil

	case config.StoreFile:
		return b.fileStore(tc.File.Path)

	case config.StoreKeyring:
		ks := tokenstore.NewKeyringStore(tc.Keyring.Service)
		if ks.Available() {
			return ks, nil
		}
		b.log.Warn().
			Str("service", tc.Keyring.Service).
			Msg("System keyring unavailable, falling back to credentials file")
		return b.fileStore(tc.File.Path)

	case config.StoreRedis:
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		rs, err := tokenstore.DialRedis(cctx, &redis.Options{
			Addr:     net.JoinHostPort(tc.Redis.Host, strconv.Itoa(tc.Redis.Port)),
			Password: tc.Redis.Password,
			DB:       tc.Redis.Database,
		}, tc.Redis.Prefix)
		if err != nil {
			return nil, err
		}
		b.track("redis token store", rs)
		return rs, nil

	case config.StoreSQL:
		db, err := b.opts.sqlOpener()(tc.SQL.Driver, tc.SQL.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s database: %w", tc.SQL.Driver, err)
		}
		b.track("token database", db)
		ss, err := tokenstore.NewSQLStore(db, tc.SQL.Table)
		if err != nil {
			return nil, err
		}
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := ss.EnsureSchema(cctx); err != nil {
			return nil, err
		}
		return ss, nil

	default:
		return nil, fmt.Errorf("unknown token store backend %q", tc.Backend)
	}
}

func (b *appBootstrap) fileStore(path string) (tokenstore.Store, error) {
	fs, err := tokenstore.NewFileStore(path)
	if err != nil {
		return nil, err
	}
	b.log.Debug().Str("path", fs.Path()).Msg("Using file token store")
	return fs, nil
}

// sink creates the notification sink. The log sink is always present so
// every user-facing message also lands in the application log.
func (b *appBootstrap) sink() (notify.Sink, error) {
	sinks := []notify.Sink{notify.NewLogSink(b.log)}

	nc := b.cfg.Notify
	if nc.Backend == config.NotifyAMQP {
		as, err := b.opts.amqpDialer()(nc.AMQP.URL, notify.AMQPOptions{
			Exchange:   nc.AMQP.Exchange,
			RoutingKey: nc.AMQP.RoutingKey,
			Buffer:     nc.Buffer,
		}, b.log)
		if err != nil {
			return nil, err
		}
		b.log.Info().
			Str("broker_url", nc.AMQP.URL).
			Str("exchange", nc.AMQP.Exchange).
			Msg("Publishing notifications over AMQP")
		b.track("notification publisher", as)
		sinks = append(sinks, as)
	}
	if b.opts != nil && b.opts.Sink != nil {
		sinks = append(sinks, b.opts.Sink)
	}
	return notify.Multi(sinks...), nil
}

// client builds the API client around the session. A logout from any source
// resets the refresh coordinator so parked requests fail instead of replaying.
func (b *appBootstrap) client(store tokenstore.Store, sink notify.Sink, sess *session.Manager) *httpclient.APIClient {
	builder := httpclient.NewBuilder(b.log).
		WithBaseURL(b.cfg.API.BaseURL).
		WithTimeout(b.cfg.API.Timeout).
		WithRetries(b.cfg.Retry.Max, b.cfg.Retry.BaseDelay).
		WithTransientStatuses(b.cfg.Retry.Statuses...).
		WithRetryUnsafeMethods(b.cfg.Retry.UnsafeMethods).
		WithRefreshEndpoint(b.cfg.Auth.RefreshPath, b.cfg.Auth.RefreshTimeout).
		WithTokenStore(store).
		WithNotifier(sink).
		WithSession(sess).
		WithPayloadLogging(b.cfg.Log.Level == "debug" || b.cfg.Log.Level == "trace", 0)

	if b.cfg.RateLimit.RPS > 0 {
		builder = builder.WithRateLimit(b.cfg.RateLimit.RPS, b.cfg.RateLimit.Burst)
	}
	if b.opts != nil && b.opts.Transport != nil {
		builder = builder.WithTransport(b.opts.Transport)
	}

	client := builder.Build()
	sess.OnLogout(func() {
		client.Coordinator().Reset(httpclient.ErrLoggedOut)
	})
	return client
}
