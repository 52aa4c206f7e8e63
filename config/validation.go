package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct-level constraints first, then the rules that depend
// on which backends are selected.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fieldError(fieldErrs[0])
		}
		return err
	}

	if err := validateTokenStore(&cfg.TokenStore); err != nil {
		return fmt.Errorf("tokenstore config: %w", err)
	}

	if err := validateNotify(&cfg.Notify); err != nil {
		return fmt.Errorf("notify config: %w", err)
	}

	if cfg.Observability.Enabled && cfg.Observability.Endpoint == "" {
		return NewMissingFieldError("observability.endpoint", "FINBRICKS_OBSERVABILITY_ENDPOINT", "observability.endpoint")
	}

	if cfg.RateLimit.RPS > 0 && cfg.RateLimit.Burst == 0 {
		return NewInvalidFieldError("ratelimit.burst", "must be positive when ratelimit.rps is set", nil)
	}

	return nil
}

func validateTokenStore(cfg *TokenStoreConfig) error {
	switch cfg.Backend {
	case StoreRedis:
		if cfg.Redis.Host == "" {
			return NewMissingFieldError("tokenstore.redis.host", "FINBRICKS_TOKENSTORE_REDIS_HOST", "tokenstore.redis.host")
		}
		if cfg.Redis.Port <= 0 || cfg.Redis.Port > 65535 {
			return NewInvalidFieldError("tokenstore.redis.port", fmt.Sprintf("invalid port: %d", cfg.Redis.Port), nil)
		}
	case StoreSQL:
		if cfg.SQL.DSN == "" {
			return NewMissingFieldError("tokenstore.sql.dsn", "FINBRICKS_TOKENSTORE_SQL_DSN", "tokenstore.sql.dsn")
		}
		if cfg.SQL.Table == "" {
			return NewMissingFieldError("tokenstore.sql.table", "FINBRICKS_TOKENSTORE_SQL_TABLE", "tokenstore.sql.table")
		}
	case StoreKeyring:
		if cfg.Keyring.Service == "" {
			return NewMissingFieldError("tokenstore.keyring.service", "FINBRICKS_TOKENSTORE_KEYRING_SERVICE", "tokenstore.keyring.service")
		}
	}
	return nil
}

func validateNotify(cfg *NotifyConfig) error {
	if cfg.Backend != NotifyAMQP {
		return nil
	}
	if cfg.AMQP.URL == "" {
		return NewMissingFieldError("notify.amqp.url", "FINBRICKS_NOTIFY_AMQP_URL", "notify.amqp.url")
	}
	if cfg.AMQP.Exchange == "" {
		return NewMissingFieldError("notify.amqp.exchange", "FINBRICKS_NOTIFY_AMQP_EXCHANGE", "notify.amqp.exchange")
	}
	return nil
}

// fieldError turns a validator failure into a ConfigError keyed by the koanf path.
func fieldError(fe validator.FieldError) *ConfigError {
	// Namespace looks like "Config.API.BaseURL"
	path := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Config."))
	if fe.Tag() == "required" {
		env := EnvPrefix + strings.ToUpper(strings.ReplaceAll(path, ".", "_"))
		return NewMissingFieldError(path, env, path)
	}
	msg := fmt.Sprintf("failed %q check", fe.Tag())
	if fe.Param() != "" {
		msg = fmt.Sprintf("failed %q check (%s)", fe.Tag(), fe.Param())
	}
	return NewInvalidFieldError(path, msg, nil)
}
