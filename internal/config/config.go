// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads Warden configuration.
//
// Sources are layered in increasing precedence: compiled defaults, an
// optional YAML file, WARDEN_* environment variables, then command-line
// flags the user actually set. Environment names are the dotted key in upper
// case with dots replaced by underscores, so mail.smtp.host is
// WARDEN_MAIL_SMTP_HOST.
package config

import (
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/logging"
	"github.com/holomush/warden/internal/mail"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "WARDEN_"

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the complete service configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Session  SessionConfig  `koanf:"session"`
	Token    TokenConfig    `koanf:"token"`
	Lockout  LockoutConfig  `koanf:"lockout"`
	Mail     MailConfig     `koanf:"mail"`
}

// HTTPConfig configures the public API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
}

// MetricsConfig configures the observability listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// DatabaseConfig selects and tunes the account store.
type DatabaseConfig struct {
	Driver          string        `koanf:"driver"`
	URL             string        `koanf:"url"`
	MaxConns        int32         `koanf:"max_conns"`
	ConnectAttempts uint64        `koanf:"connect_attempts"`
	ConnectBackoff  time.Duration `koanf:"connect_backoff"`
	Timeout         time.Duration `koanf:"timeout"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// SessionConfig configures session tokens.
type SessionConfig struct {
	Secret   string        `koanf:"secret"`
	Issuer   string        `koanf:"issuer"`
	Audience string        `koanf:"audience"`
	Lifetime time.Duration `koanf:"lifetime"`
}

// TokenConfig configures ephemeral tokens.
type TokenConfig struct {
	TTL             time.Duration `koanf:"ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// LockoutConfig configures brute-force lockout.
type LockoutConfig struct {
	Threshold int           `koanf:"threshold"`
	Window    time.Duration `koanf:"window"`
}

// MailConfig configures email rendering, transport and delivery.
type MailConfig struct {
	mail.Config `koanf:",squash"`

	ProductName string                `koanf:"product_name"`
	Dispatcher  mail.DispatcherConfig `koanf:"dispatcher"`
}

// Defaults returns the compiled default configuration as flat koanf keys.
func Defaults() map[string]any {
	dispatcher := mail.DefaultDispatcherConfig()
	return map[string]any{
		"http.addr":             ":5000",
		"http.request_timeout":  30 * time.Second,
		"http.shutdown_timeout": 10 * time.Second,
		"http.max_body_bytes":   int64(1 << 20),

		"metrics.addr": "127.0.0.1:9100",

		"log.format": "json",
		"log.level":  "info",

		"database.driver":           StorePostgres,
		"database.url":              "",
		"database.max_conns":        int32(10),
		"database.connect_attempts": uint64(5),
		"database.connect_backoff":  500 * time.Millisecond,
		"database.timeout":          auth.DefaultStoreTimeout,
		"database.auto_migrate":     false,

		"session.secret":   "",
		"session.issuer":   auth.DefaultSessionIssuer,
		"session.audience": auth.DefaultSessionAudience,
		"session.lifetime": auth.DefaultSessionLifetime,

		"token.ttl":              auth.DefaultTokenTTL,
		"token.cleanup_interval": time.Hour,

		"lockout.threshold": auth.DefaultLockoutPolicy().Threshold,
		"lockout.window":    auth.DefaultLockoutPolicy().Window,

		"mail.driver":        mail.DriverLog,
		"mail.from":          "",
		"mail.from_name":     mail.DefaultProductName,
		"mail.base_url":      "http://localhost:3000",
		"mail.product_name":  mail.DefaultProductName,
		"mail.smtp.host":     "smtp.gmail.com",
		"mail.smtp.port":     587,
		"mail.smtp.username": "",
		"mail.smtp.password": "",
		"mail.smtp.ssl":      false,
		"mail.smtp.timeout":  15 * time.Second,
		"mail.ses.region":    "",

		"mail.dispatcher.queue_size":      dispatcher.QueueSize,
		"mail.dispatcher.workers":         dispatcher.Workers,
		"mail.dispatcher.max_retries":     dispatcher.MaxRetries,
		"mail.dispatcher.retry_backoff":   dispatcher.RetryBackoff,
		"mail.dispatcher.attempt_timeout": dispatcher.AttemptTimeout,
	}
}

// legacyEnv maps the unprefixed variables of earlier deployments to keys.
// They apply only when the file and WARDEN_* layers left the key at its default.
var legacyEnv = map[string]string{
	"DATABASE_URL": "database.url",
	"JWT_SECRET":   "session.secret",
	"FRONTEND_URL": "mail.base_url",
	"SMTP_HOST":    "mail.smtp.host",
	"SMTP_PORT":    "mail.smtp.port",
	"SMTP_USER":    "mail.smtp.username",
	"SMTP_PASS":    "mail.smtp.password",
	"SMTP_SECURE":  "mail.smtp.ssl",
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"http-addr":    "http.addr",
	"metrics-addr": "metrics.addr",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"store":        "database.driver",
	"database-url": "database.url",
	"auto-migrate": "database.auto_migrate",
	"mail-driver":  "mail.driver",
}

// Load builds a Config from defaults, path (optional), the environment and flags (optional).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	defaults := Defaults()
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	envKeys := make(map[string]string, len(defaults))
	for _, key := range k.Keys() {
		envKeys[strings.ReplaceAll(key, ".", "_")] = key
	}
	err := k.Load(env.Provider(EnvPrefix, ".", func(name string) string {
		return envKeys[strings.ToLower(strings.TrimPrefix(name, EnvPrefix))]
	}), nil)
	if err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if err := applyLegacyEnv(k, defaults); err != nil {
		return nil, err
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := FlagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}
	return &cfg, nil
}

func applyLegacyEnv(k *koanf.Koanf, defaults map[string]any) error {
	for name, key := range legacyEnv {
		value, ok := os.LookupEnv(name)
		if !ok || value == "" {
			continue
		}
		if k.Get(key) != defaults[key] {
			continue
		}
		if err := k.Set(key, value); err != nil {
			return oops.Code("CONFIG_LOAD_FAILED").With("env", name).Wrap(err)
		}
	}
	return nil
}

// Validate checks that the configuration is usable by serve.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "is required")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return invalid("http.max_body_bytes", "must be positive")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "must be 'json' or 'text'")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "must be debug, info, warn or error")
	}

	switch c.Database.Driver {
	case StorePostgres:
		if c.Database.URL == "" {
			return invalid("database.url", "is required for the postgres store (WARDEN_DATABASE_URL or DATABASE_URL)")
		}
	case StoreMemory:
	default:
		return invalid("database.driver", "must be 'postgres' or 'memory'")
	}
	if c.Database.Timeout <= 0 {
		return invalid("database.timeout", "must be positive")
	}

	if len(c.Session.Secret) < auth.MinSessionSecretLength {
		return invalid("session.secret", "must be at least 32 bytes (WARDEN_SESSION_SECRET or JWT_SECRET)")
	}
	if c.Session.Lifetime <= 0 {
		return invalid("session.lifetime", "must be positive")
	}
	if c.Token.TTL <= 0 {
		return invalid("token.ttl", "must be positive")
	}
	if c.Token.CleanupInterval <= 0 {
		return invalid("token.cleanup_interval", "must be positive")
	}
	if c.Lockout.Threshold <= 0 {
		return invalid("lockout.threshold", "must be positive")
	}
	if c.Lockout.Window <= 0 {
		return invalid("lockout.window", "must be positive")
	}

	return c.validateMail()
}

func (c *Config) validateMail() error {
	switch c.Mail.Driver {
	case mail.DriverLog, mail.DriverSMTP:
	case mail.DriverSES:
		if c.Mail.From == "" {
			return invalid("mail.from", "is required for the ses driver")
		}
	default:
		return invalid("mail.driver", "must be 'log', 'smtp' or 'ses'")
	}
	u, err := url.Parse(c.Mail.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("mail.base_url", "must be an absolute URL")
	}
	return nil
}

// LockoutPolicy returns the configured lockout policy.
func (c *Config) LockoutPolicy() auth.LockoutPolicy {
	return auth.LockoutPolicy{Threshold: c.Lockout.Threshold, Window: c.Lockout.Window}
}

func invalid(key, msg string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s %s", key, msg)
}
