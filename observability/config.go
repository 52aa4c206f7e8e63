package observability

import (
	"errors"
	"fmt"
	"time"
)

const (
	// EndpointStdout writes telemetry to the provider's writer (for local development).
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	defaultServiceName     = "finbricks"
	defaultMetricsInterval = 30 * time.Second
	defaultExportTimeout   = 10 * time.Second
)

var (
	// ErrMissingEndpoint is returned when telemetry is enabled without an endpoint
	ErrMissingEndpoint = errors.New("observability: endpoint is required")
	// ErrInvalidProtocol is returned for a protocol other than http or grpc
	ErrInvalidProtocol = errors.New("observability: invalid protocol")
	// ErrInvalidSampleRate is returned for a sample rate outside [0, 1]
	ErrInvalidSampleRate = errors.New("observability: sample rate must be between 0 and 1")
)

// Config controls export of the client's spans and metrics.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Endpoint is host:port of an OTLP collector, or EndpointStdout.
	Endpoint string
	Protocol string
	Insecure bool
	Headers  map[string]string

	SampleRate      float64
	MetricsInterval time.Duration
	ExportTimeout   time.Duration
}

// ApplyDefaults fills unset fields. A zero sample rate means "sample everything".
func (c *Config) ApplyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	if c.Protocol == "" {
		c.Protocol = ProtocolHTTP
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1
	}
	if c.MetricsInterval <= 0 {
		c.MetricsInterval = defaultMetricsInterval
	}
	if c.ExportTimeout <= 0 {
		c.ExportTimeout = defaultExportTimeout
	}
}

// Validate checks an enabled configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return ErrMissingEndpoint
	}
	if c.Endpoint != EndpointStdout && c.Protocol != ProtocolHTTP && c.Protocol != ProtocolGRPC {
		return fmt.Errorf("protocol %q: %w", c.Protocol, ErrInvalidProtocol)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return ErrInvalidSampleRate
	}
	return nil
}
