package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBaseURL    = "https://api.finbricks.test"
	envBaseURL     = "FINBRICKS_API_BASEURL"
	envLegacyURL   = "API_BASE_URL"
	missingYAMLDir = "does-not-exist.yaml"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "finbricks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(envLegacyURL, "")
	t.Setenv(envBaseURL, testBaseURL)

	cfg, err := LoadFrom(missingYAMLDir)
	require.NoError(t, err)

	assert.Equal(t, testBaseURL, cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3, cfg.Retry.Max)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, []int{502, 503, 504}, cfg.Retry.Statuses)
	assert.False(t, cfg.Retry.UnsafeMethods)
	assert.Equal(t, "/auth/refresh", cfg.Auth.RefreshPath)
	assert.Equal(t, 10*time.Second, cfg.Auth.RefreshTimeout)
	assert.Equal(t, StoreMemory, cfg.TokenStore.Backend)
	assert.Equal(t, NotifyLog, cfg.Notify.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Observability.Enabled)
	assert.Equal(t, "http", cfg.Observability.Protocol)
	assert.Equal(t, 30*time.Second, cfg.Observability.Interval)
}

func TestBaseURLFromEnvironment(t *testing.T) {
	t.Setenv(envBaseURL, "")
	t.Setenv(envLegacyURL, "http://localhost:8080")

	cfg, err := LoadFrom(missingYAMLDir)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.API.BaseURL)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	t.Setenv(envLegacyURL, "")
	path := writeYAML(t, `
api:
  baseurl: https://yaml.finbricks.test
  timeout: 5s
retry:
  max: 5
  basedelay: 250ms
  statuses: [503]
tokenstore:
  backend: redis
  redis:
    host: localhost
log:
  level: debug
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "https://yaml.finbricks.test", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5, cfg.Retry.Max)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, []int{503}, cfg.Retry.Statuses)
	assert.Equal(t, StoreRedis, cfg.TokenStore.Backend)
	assert.Equal(t, 6379, cfg.TokenStore.Redis.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvironmentOverridesYAML(t *testing.T) {
	t.Setenv(envLegacyURL, "")
	path := writeYAML(t, "api:\n  baseurl: https://yaml.finbricks.test\nretry:\n  max: 5\n")
	t.Setenv(envBaseURL, testBaseURL)
	t.Setenv("FINBRICKS_RETRY_MAX", "1")
	t.Setenv("FINBRICKS_RETRY_STATUSES", "502,503")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, testBaseURL, cfg.API.BaseURL)
	assert.Equal(t, 1, cfg.Retry.Max)
	assert.Equal(t, []int{502, 503}, cfg.Retry.Statuses)
}

func TestLoadRejectsMissingBaseURL(t *testing.T) {
	t.Setenv(envLegacyURL, "")
	t.Setenv(envBaseURL, "")

	_, err := LoadFrom(missingYAMLDir)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "missing", cfgErr.Category)
	assert.Equal(t, "api.baseurl", cfgErr.Field)
	assert.Contains(t, err.Error(), envBaseURL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			API:        APIConfig{BaseURL: testBaseURL, Timeout: time.Second},
			Retry:      RetryConfig{Max: 3, BaseDelay: time.Second, Statuses: []int{502, 503, 504}},
			Auth:       AuthConfig{RefreshPath: "/auth/refresh"},
			TokenStore: TokenStoreConfig{Backend: StoreMemory},
			Notify:     NotifyConfig{Backend: NotifyLog},
			Log:        LogConfig{Level: "info"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad url", mutate: func(c *Config) { c.API.BaseURL = "not a url" }, field: "api.baseurl"},
		{name: "zero timeout", mutate: func(c *Config) { c.API.Timeout = 0 }, field: "api.timeout"},
		{name: "negative retries", mutate: func(c *Config) { c.Retry.Max = -1 }, field: "retry.max"},
		{name: "non 5xx status", mutate: func(c *Config) { c.Retry.Statuses = []int{429} }, field: "retry.statuses[0]"},
		{name: "relative refresh path", mutate: func(c *Config) { c.Auth.RefreshPath = "auth/refresh" }, field: "auth.refreshpath"},
		{name: "unknown backend", mutate: func(c *Config) { c.TokenStore.Backend = "etcd" }, field: "tokenstore.backend"},
		{name: "redis without host", mutate: func(c *Config) { c.TokenStore.Backend = StoreRedis; c.TokenStore.Redis.Port = 6379 }, field: "tokenstore.redis.host"},
		{name: "sql without dsn", mutate: func(c *Config) { c.TokenStore.Backend = StoreSQL; c.TokenStore.SQL.Table = "t" }, field: "tokenstore.sql.dsn"},
		{name: "amqp without url", mutate: func(c *Config) { c.Notify.Backend = NotifyAMQP }, field: "notify.amqp.url"},
		{name: "rate without burst", mutate: func(c *Config) { c.RateLimit.RPS = 5 }, field: "ratelimit.burst"},
		{name: "telemetry without endpoint", mutate: func(c *Config) { c.Observability.Enabled = true }, field: "observability.endpoint"},
		{name: "bad telemetry protocol", mutate: func(c *Config) { c.Observability.Protocol = "udp" }, field: "observability.protocol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}
