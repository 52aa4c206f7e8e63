package config

import "time"

// Config is the full finbricks configuration tree. Fields map to koanf keys
// (lower-case, dot separated) and to FINBRICKS_* environment variables.
type Config struct {
	API        APIConfig        `koanf:"api" yaml:"api"`
	Retry      RetryConfig      `koanf:"retry" yaml:"retry"`
	Auth       AuthConfig       `koanf:"auth" yaml:"auth"`
	RateLimit  RateLimitConfig  `koanf:"ratelimit" yaml:"ratelimit"`
	TokenStore TokenStoreConfig `koanf:"tokenstore" yaml:"tokenstore"`
	Notify     NotifyConfig     `koanf:"notify" yaml:"notify"`
	Log        LogConfig        `koanf:"log" yaml:"log"`

	Observability ObservabilityConfig `koanf:"observability" yaml:"observability"`
}

// APIConfig describes the backend the client talks to.
type APIConfig struct {
	BaseURL string        `koanf:"baseurl" yaml:"baseurl" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout" validate:"gt=0"`
}

// RetryConfig controls the transient-retry policy.
// Delay before retry k is BaseDelay * k.
type RetryConfig struct {
	Max           int           `koanf:"max" yaml:"max" validate:"gte=0,lte=10"`
	BaseDelay     time.Duration `koanf:"basedelay" yaml:"basedelay" validate:"gte=0"`
	Statuses      []int         `koanf:"statuses" yaml:"statuses" validate:"dive,gte=500,lte=599"`
	UnsafeMethods bool          `koanf:"unsafemethods" yaml:"unsafemethods"`
}

// AuthConfig locates the refresh endpoint.
type AuthConfig struct {
	RefreshPath    string        `koanf:"refreshpath" yaml:"refreshpath" validate:"required,startswith=/"`
	RefreshTimeout time.Duration `koanf:"refreshtimeout" yaml:"refreshtimeout" validate:"gte=0"`
}

// RateLimitConfig enables an optional client-side limiter. RPS of 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps" yaml:"rps" validate:"gte=0"`
	Burst int     `koanf:"burst" yaml:"burst" validate:"gte=0"`
}

// TokenStore backend names
const (
	StoreMemory  = "memory"
	StoreFile    = "file"
	StoreKeyring = "keyring"
	StoreRedis   = "redis"
	StoreSQL     = "sql"
)

// TokenStoreConfig selects where credentials live.
type TokenStoreConfig struct {
	Backend string             `koanf:"backend" yaml:"backend" validate:"oneof=memory file keyring redis sql"`
	File    FileStoreConfig    `koanf:"file" yaml:"file"`
	Keyring KeyringStoreConfig `koanf:"keyring" yaml:"keyring"`
	Redis   RedisStoreConfig   `koanf:"redis" yaml:"redis"`
	SQL     SQLStoreConfig     `koanf:"sql" yaml:"sql"`
}

type FileStoreConfig struct {
	Path string `koanf:"path" yaml:"path"`
}

type KeyringStoreConfig struct {
	Service string `koanf:"service" yaml:"service"`
}

type RedisStoreConfig struct {
	Host     string `koanf:"host" yaml:"host"`
	Port     int    `koanf:"port" yaml:"port"`
	Password string `koanf:"password" yaml:"password"`
	Database int    `koanf:"database" yaml:"database"`
	Prefix   string `koanf:"prefix" yaml:"prefix"`
}

type SQLStoreConfig struct {
	Driver string `koanf:"driver" yaml:"driver"`
	DSN    string `koanf:"dsn" yaml:"dsn"`
	Table  string `koanf:"table" yaml:"table"`
}

// Notification sink backend names
const (
	NotifyLog  = "log"
	NotifyAMQP = "amqp"
)

// NotifyConfig selects the notification sink.
type NotifyConfig struct {
	Backend string     `koanf:"backend" yaml:"backend" validate:"oneof=log amqp"`
	Buffer  int        `koanf:"buffer" yaml:"buffer" validate:"gte=0"`
	AMQP    AMQPConfig `koanf:"amqp" yaml:"amqp"`
}

type AMQPConfig struct {
	URL        string `koanf:"url" yaml:"url"`
	Exchange   string `koanf:"exchange" yaml:"exchange"`
	RoutingKey string `koanf:"routingkey" yaml:"routingkey"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty" yaml:"pretty"`
}

// ObservabilityConfig controls OpenTelemetry export of client spans and metrics.
// Endpoint is host:port of an OTLP collector or "stdout".
type ObservabilityConfig struct {
	Enabled     bool              `koanf:"enabled" yaml:"enabled"`
	ServiceName string            `koanf:"servicename" yaml:"servicename"`
	Environment string            `koanf:"environment" yaml:"environment"`
	Endpoint    string            `koanf:"endpoint" yaml:"endpoint"`
	Protocol    string            `koanf:"protocol" yaml:"protocol" validate:"omitempty,oneof=http grpc"`
	Insecure    bool              `koanf:"insecure" yaml:"insecure"`
	Headers     map[string]string `koanf:"headers" yaml:"headers"`
	SampleRate  float64           `koanf:"samplerate" yaml:"samplerate" validate:"gte=0,lte=1"`
	Interval    time.Duration     `koanf:"interval" yaml:"interval" validate:"gte=0"`
}
