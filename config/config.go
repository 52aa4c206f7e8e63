// Package config loads finbricks configuration from defaults, an optional YAML
// file and FINBRICKS_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment variable read by Load
	EnvPrefix = "FINBRICKS_"

	// DefaultFile is the YAML file Load looks for in the working directory
	DefaultFile = "finbricks.yaml"
)

// Load reads DefaultFile (if present) and the environment.
func Load() (*Config, error) {
	return LoadFrom(DefaultFile)
}

// LoadFrom loads configuration with priority:
// 1. Environment variables (highest)
// 2. The YAML file at path, skipped when it does not exist
// 3. Defaults (lowest)
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			if value == "" {
				return "", nil
			}
			// FINBRICKS_API_BASEURL -> api.baseurl
			key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "_", ".")
			if key == "retry.statuses" {
				return key, strings.Split(value, ",")
			}
			return key, value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func defaults() map[string]any {
	return map[string]any{
		"api.baseurl": os.Getenv("API_BASE_URL"),
		"api.timeout": "10s",

		"retry.max":           3,
		"retry.basedelay":     "1s",
		"retry.statuses":      []int{502, 503, 504},
		"retry.unsafemethods": false,

		"auth.refreshpath":    "/auth/refresh",
		"auth.refreshtimeout": "10s",

		"ratelimit.rps":   0,
		"ratelimit.burst": 0,

		"tokenstore.backend":         StoreMemory,
		"tokenstore.keyring.service": "finbricks",
		"tokenstore.redis.port":      6379,
		"tokenstore.redis.prefix":    "finbricks:tokens:",
		"tokenstore.sql.driver":      "pgx",
		"tokenstore.sql.table":       "auth_tokens",

		"notify.backend":         NotifyLog,
		"notify.buffer":          32,
		"notify.amqp.exchange":   "finbricks.notifications",
		"notify.amqp.routingkey": "ui.toast",

		"log.level":  "info",
		"log.pretty": false,

		"observability.enabled":     false,
		"observability.servicename": "finbricks",
		"observability.environment": "development",
		"observability.protocol":    "http",
		"observability.samplerate":  1.0,
		"observability.interval":    "30s",
	}
}
