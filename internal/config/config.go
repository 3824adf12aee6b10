// Package config loads the phonebook-server settings from the environment
// and an optional config file.
//
// Every key can be set through PHONEBOOK_<SECTION>_<KEY>, for example
// PHONEBOOK_AUTH_ACCESS_SECRET or PHONEBOOK_DATABASE_DSN.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/phonebook"
	"github.com/spf13/viper"
)

const EnvPrefix = "PHONEBOOK"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Session   SessionConfig   `mapstructure:"session"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Mail      MailConfig      `mapstructure:"mail"`
	Avatar    AvatarConfig    `mapstructure:"avatar"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// DatabaseConfig is optional. Without a DSN users live in memory, which is
// only suitable for local runs.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	AccessSecret   string        `mapstructure:"access_secret"`
	RefreshSecret  string        `mapstructure:"refresh_secret"`
	RecoverySecret string        `mapstructure:"recovery_secret"`
	AccessTTL      time.Duration `mapstructure:"access_ttl"`
	RefreshTTL     time.Duration `mapstructure:"refresh_ttl"`
	ResetTTL       time.Duration `mapstructure:"reset_ttl"`
	Issuer         string        `mapstructure:"issuer"`
	PublicBaseURL  string        `mapstructure:"public_base_url"`
}

// SessionConfig selects the session backend, "redis" or "postgres".
// SweepInterval only applies to postgres; zero disables the sweeper.
type SessionConfig struct {
	Store         string        `mapstructure:"store"`
	RedisPrefix   string        `mapstructure:"redis_prefix"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type RateLimitConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	IPThrottle          bool          `mapstructure:"ip_throttle"`
	MaxLoginAttempts    int           `mapstructure:"max_login_attempts"`
	LoginCooldown       time.Duration `mapstructure:"login_cooldown"`
	MaxRecoveryRequests int           `mapstructure:"max_recovery_requests"`
	RecoveryWindow      time.Duration `mapstructure:"recovery_window"`
}

// MailConfig selects "log" (development) or "smtp".
type MailConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	From            string `mapstructure:"from"`
	InsecureSkipTLS bool   `mapstructure:"insecure_skip_tls"`
}

// AvatarConfig selects "file" or "s3" storage.
type AvatarConfig struct {
	Storage   string   `mapstructure:"storage"`
	Dir       string   `mapstructure:"dir"`
	URLPrefix string   `mapstructure:"url_prefix"`
	MaxBytes  int64    `mapstructure:"max_bytes"`
	S3        S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	BaseEndpoint string `mapstructure:"base_endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	PublicURL    string `mapstructure:"public_url"`
}

// AuditConfig selects "none", "log" or "kafka".
type AuditConfig struct {
	Sink       string   `mapstructure:"sink"`
	BufferSize int      `mapstructure:"buffer_size"`
	Brokers    []string `mapstructure:"brokers"`
	Topic      string   `mapstructure:"topic"`
}

type MetricsConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Histograms bool `mapstructure:"histograms"`

	// ReportInterval > 0 logs the counters through an OpenTelemetry reader.
	ReportInterval time.Duration `mapstructure:"report_interval"`
}

// Load reads path when it is not empty, then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to bind config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can see it during
// Unmarshal. Secrets default to empty and must be provided.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.access_secret", "")
	v.SetDefault("auth.refresh_secret", "")
	v.SetDefault("auth.recovery_secret", "")
	v.SetDefault("auth.access_ttl", "15m")
	v.SetDefault("auth.refresh_ttl", "168h")
	v.SetDefault("auth.reset_ttl", "1h")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.public_base_url", "http://localhost:3000")

	v.SetDefault("session.store", "redis")
	v.SetDefault("session.redis_prefix", "pbs")
	v.SetDefault("session.sweep_interval", "10m")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.ip_throttle", true)
	v.SetDefault("rate_limit.max_login_attempts", 5)
	v.SetDefault("rate_limit.login_cooldown", "15m")
	v.SetDefault("rate_limit.max_recovery_requests", 3)
	v.SetDefault("rate_limit.recovery_window", "15m")

	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.insecure_skip_tls", false)

	v.SetDefault("avatar.storage", "file")
	v.SetDefault("avatar.dir", "public/avatars")
	v.SetDefault("avatar.url_prefix", "/avatars")
	v.SetDefault("avatar.max_bytes", 5<<20)
	v.SetDefault("avatar.s3.bucket", "")
	v.SetDefault("avatar.s3.region", "us-east-1")
	v.SetDefault("avatar.s3.base_endpoint", "")
	v.SetDefault("avatar.s3.access_key", "")
	v.SetDefault("avatar.s3.secret_key", "")
	v.SetDefault("avatar.s3.public_url", "")

	v.SetDefault("audit.sink", "log")
	v.SetDefault("audit.buffer_size", 1024)
	v.SetDefault("audit.brokers", []string{})
	v.SetDefault("audit.topic", "phonebook.audit")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.histograms", false)
	v.SetDefault("metrics.report_interval", 0)
}

// Validate checks what the engine cannot default: secrets and lifetimes,
// plus the backend selectors.
func (c *Config) Validate() error {
	var errs []error

	secrets := []struct{ key, val string }{
		{"auth.access_secret", c.Auth.AccessSecret},
		{"auth.refresh_secret", c.Auth.RefreshSecret},
		{"auth.recovery_secret", c.Auth.RecoverySecret},
	}
	for _, s := range secrets {
		if len(s.val) < 32 {
			errs = append(errs, fmt.Errorf("%s must be at least 32 bytes", s.key))
		}
	}
	if c.Auth.AccessSecret != "" && (c.Auth.AccessSecret == c.Auth.RefreshSecret ||
		c.Auth.AccessSecret == c.Auth.RecoverySecret ||
		c.Auth.RefreshSecret == c.Auth.RecoverySecret) {
		errs = append(errs, errors.New("auth secrets must be distinct"))
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 || c.Auth.ResetTTL <= 0 {
		errs = append(errs, errors.New("auth lifetimes must be positive"))
	}

	switch c.Session.Store {
	case "redis":
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("session.store=postgres requires database.dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session.store %q", c.Session.Store))
	}

	switch c.Mail.Driver {
	case "log":
	case "smtp":
		if c.Mail.Host == "" || c.Mail.From == "" {
			errs = append(errs, errors.New("mail.driver=smtp requires mail.host and mail.from"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mail.driver %q", c.Mail.Driver))
	}

	switch c.Avatar.Storage {
	case "file":
	case "s3":
		if c.Avatar.S3.Bucket == "" {
			errs = append(errs, errors.New("avatar.storage=s3 requires avatar.s3.bucket"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown avatar.storage %q", c.Avatar.Storage))
	}

	switch c.Audit.Sink {
	case "none", "log":
	case "kafka":
		if len(c.Audit.Brokers) == 0 || c.Audit.Topic == "" {
			errs = append(errs, errors.New("audit.sink=kafka requires audit.brokers and audit.topic"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown audit.sink %q", c.Audit.Sink))
	}

	return errors.Join(errs...)
}

// Engine translates the service settings into the engine configuration.
func (c *Config) Engine() phonebook.Config {
	cfg := phonebook.DefaultConfig()

	cfg.JWT.AccessSecret = []byte(c.Auth.AccessSecret)
	cfg.JWT.RefreshSecret = []byte(c.Auth.RefreshSecret)
	cfg.JWT.AccessTTL = c.Auth.AccessTTL
	cfg.JWT.RefreshTTL = c.Auth.RefreshTTL
	cfg.JWT.Issuer = c.Auth.Issuer

	cfg.Recovery.Secret = []byte(c.Auth.RecoverySecret)
	cfg.Recovery.ResetTTL = c.Auth.ResetTTL
	cfg.Recovery.PublicBaseURL = c.Auth.PublicBaseURL

	cfg.Session.RedisPrefix = c.Session.RedisPrefix

	cfg.RateLimit.Enabled = c.RateLimit.Enabled
	cfg.RateLimit.EnableIPThrottle = c.RateLimit.IPThrottle
	cfg.RateLimit.MaxLoginAttempts = c.RateLimit.MaxLoginAttempts
	cfg.RateLimit.LoginCooldownDuration = c.RateLimit.LoginCooldown
	cfg.RateLimit.MaxRecoveryRequests = c.RateLimit.MaxRecoveryRequests
	cfg.RateLimit.RecoveryWindow = c.RateLimit.RecoveryWindow

	cfg.Audit.Enabled = c.Audit.Sink != "none"
	cfg.Audit.BufferSize = c.Audit.BufferSize

	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Histograms
	return cfg
}
