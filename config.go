package phonebook

import (
	"bytes"
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config is the engine configuration. Secrets and lifetimes are required;
// everything else has a usable default from DefaultConfig.
type Config struct {
	JWT       JWTConfig
	Session   SessionConfig
	Password  PasswordConfig
	Recovery  RecoveryConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access and refresh tokens. The two secrets must differ.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig applies to the Redis-backed store built by the Builder.
type SessionConfig struct {
	RedisPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
	MaxLength   int
}

/*
====================================
RECOVERY CONFIG
====================================
*/

// RecoveryConfig governs email verification and forgot-password tokens.
//
// Secret keys the digests stored for recovery tokens and must differ from
// both JWT secrets. PublicBaseURL prefixes the links sent by email.
type RecoveryConfig struct {
	Secret        []byte
	ResetTTL      time.Duration
	TokenBytes    int
	PublicBaseURL string
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig configures the Redis fixed-window limiters. Enabled
// requires a Redis client on the Builder.
type RateLimitConfig struct {
	Enabled          bool
	EnableIPThrottle bool

	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration

	MaxRecoveryRequests int
	RecoveryWindow      time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a configuration with every non-secret value set.
// Callers fill in JWT.AccessSecret, JWT.RefreshSecret and Recovery.Secret.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:    15 * time.Minute,
			RefreshTTL:   7 * 24 * time.Hour,
			Issuer:       "phonebook",
			MaxFutureIAT: 10 * time.Minute,
		},
		Session: SessionConfig{
			RedisPrefix: "pbs",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   6,
			MaxLength:   1024,
		},
		Recovery: RecoveryConfig{
			ResetTTL:      time.Hour,
			TokenBytes:    32,
			PublicBaseURL: "http://localhost:3000",
		},
		RateLimit: RateLimitConfig{
			Enabled:               true,
			EnableIPThrottle:      true,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
			MaxRecoveryRequests:   5,
			RecoveryWindow:        time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	out.Recovery.Secret = cloneBytes(cfg.Recovery.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if len(c.JWT.AccessSecret) < 32 {
		return errors.New("JWT AccessSecret must be at least 32 bytes")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		return errors.New("JWT RefreshSecret must be at least 32 bytes")
	}
	if bytes.Equal(c.JWT.AccessSecret, c.JWT.RefreshSecret) {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.MaxFutureIAT < 0 || c.JWT.MaxFutureIAT > 24*time.Hour {
		return errors.New("JWT MaxFutureIAT must be between 0 and 24h")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}

	// Recovery
	if len(c.Recovery.Secret) < 32 {
		return errors.New("Recovery Secret must be at least 32 bytes")
	}
	if bytes.Equal(c.Recovery.Secret, c.JWT.AccessSecret) || bytes.Equal(c.Recovery.Secret, c.JWT.RefreshSecret) {
		return errors.New("Recovery Secret must differ from JWT secrets")
	}
	if c.Recovery.ResetTTL <= 0 {
		return errors.New("Recovery ResetTTL must be > 0")
	}
	if c.Recovery.TokenBytes < 16 || c.Recovery.TokenBytes > 64 {
		return errors.New("Recovery TokenBytes must be between 16 and 64")
	}
	u, err := url.Parse(c.Recovery.PublicBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("Recovery PublicBaseURL must be an absolute http(s) URL")
	}

	// Rate limits
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxLoginAttempts <= 0 {
			return errors.New("RateLimit MaxLoginAttempts must be > 0")
		}
		if c.RateLimit.LoginCooldownDuration <= 0 {
			return errors.New("RateLimit LoginCooldownDuration must be > 0")
		}
		if c.RateLimit.MaxRecoveryRequests <= 0 {
			return errors.New("RateLimit MaxRecoveryRequests must be > 0")
		}
		if c.RateLimit.RecoveryWindow <= 0 {
			return errors.New("RateLimit RecoveryWindow must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
