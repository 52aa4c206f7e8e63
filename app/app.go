// Package app wires configuration, logging, credential storage, user
// notifications and the session into a ready-to-use API client.
package app

import (
	"context"
	"fmt"

	"github.com/gaborage/finbricks/config"
	"github.com/gaborage/finbricks/httpclient"
	"github.com/gaborage/finbricks/logger"
	"github.com/gaborage/finbricks/notify"
	"github.com/gaborage/finbricks/session"
	"github.com/gaborage/finbricks/tokenstore"
)

// App represents the main application instance.
type App struct {
	cfg     *config.Config
	logger  logger.Logger
	store   tokenstore.Store
	sink    notify.Sink
	session *session.Manager
	client  *httpclient.APIClient
	closers []namedCloser
}

// New creates an App from the default configuration sources.
func New(ctx context.Context) (*App, error) {
	return NewWithOptions(ctx, nil)
}

// NewWithOptions creates an App, letting callers override the config loader
// and the factories behind external connections.
func NewWithOptions(ctx context.Context, opts *Options) (*App, error) {
	cfg, err := opts.configLoader()()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(ctx, cfg, opts)
}

// NewWithConfig creates an App from an already loaded configuration.
// Resources opened before a failure are closed before returning.
func NewWithConfig(ctx context.Context, cfg *config.Config, opts *Options) (*App, error) {
	var log logger.Logger
	if opts != nil && opts.Logger != nil {
		log = opts.Logger
	} else {
		log = logger.New(cfg.Log.Level, cfg.Log.Pretty)
	}

	log.Info().
		Str("base_url", cfg.API.BaseURL).
		Str("token_store", cfg.TokenStore.Backend).
		Str("notify", cfg.Notify.Backend).
		Msg("Starting finbricks client")

	b := newAppBootstrap(cfg, log, opts)
	a := &App{cfg: cfg, logger: log}

	if err := b.telemetry(); err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	store, err := b.tokenStore(ctx)
	if err != nil {
		a.closers = b.closers
		_ = a.Close()
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	sink, err := b.sink()
	if err != nil {
		a.closers = b.closers
		_ = a.Close()
		return nil, fmt.Errorf("failed to create notification sink: %w", err)
	}

	sess := session.NewManager(store, log)

	a.store = store
	a.sink = sink
	a.session = sess
	a.client = b.client(store, sink, sess)
	a.closers = b.closers
	return a, nil
}

// Config returns the loaded configuration
func (a *App) Config() *config.Config { return a.cfg }

// Logger returns the application logger
func (a *App) Logger() logger.Logger { return a.logger }

// Store returns the credential store
func (a *App) Store() tokenstore.Store { return a.store }

// Sink returns the notification sink
func (a *App) Sink() notify.Sink { return a.sink }

// Session returns the session manager
func (a *App) Session() *session.Manager { return a.session }

// Client returns the API client
func (a *App) Client() *httpclient.APIClient { return a.client }
