package app

import (
	"database/sql"
	nethttp "net/http"

	"github.com/gaborage/finbricks/config"
	"github.com/gaborage/finbricks/logger"
	"github.com/gaborage/finbricks/notify"
	"github.com/gaborage/finbricks/observability"
)

// Options contains optional dependencies for creating an App instance
type Options struct {
	ConfigLoader func() (*config.Config, error)
	Logger       logger.Logger
	// Transport replaces the client's round tripper, mainly for tests
	Transport  nethttp.RoundTripper
	SQLOpener  func(driver, dsn string) (*sql.DB, error)
	AMQPDialer func(url string, opts notify.AMQPOptions, log logger.Logger) (*notify.AMQPSink, error)
	// Sink is added next to the configured sink, e.g. a UI toast queue
	Sink notify.Sink

	ProviderFactory func(*observability.Config) (observability.Provider, error)
}

func (o *Options) configLoader() func() (*config.Config, error) {
	if o != nil && o.ConfigLoader != nil {
		return o.ConfigLoader
	}
	return config.Load
}

func (o *Options) sqlOpener() func(driver, dsn string) (*sql.DB, error) {
	if o != nil && o.SQLOpener != nil {
		return o.SQLOpener
	}
	return sql.Open
}

func (o *Options) amqpDialer() func(string, notify.AMQPOptions, logger.Logger) (*notify.AMQPSink, error) {
	if o != nil && o.AMQPDialer != nil {
		return o.AMQPDialer
	}
	return notify.DialAMQP
}

func (o *Options) providerFactory() func(*observability.Config) (observability.Provider, error) {
	if o != nil && o.ProviderFactory != nil {
		return o.ProviderFactory
	}
	return observability.NewProvider
}
