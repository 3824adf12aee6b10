package phonebook

import (
	"strings"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = []byte(strings.Repeat("a", 32))
	cfg.JWT.RefreshSecret = []byte(strings.Repeat("r", 32))
	cfg.Recovery.Secret = []byte(strings.Repeat("s", 32))
	return cfg
}

func TestDefaultConfigNeedsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config without secrets must not validate")
	}
	cfg = validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config with secrets should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{"zero access ttl", func(c *Config) { c.JWT.AccessTTL = 0 }, false},
		{"negative refresh ttl", func(c *Config) { c.JWT.RefreshTTL = -time.Second }, false},
		{"refresh shorter than access", func(c *Config) { c.JWT.RefreshTTL = time.Minute }, false},
		{"short access secret", func(c *Config) { c.JWT.AccessSecret = []byte("short") }, false},
		{"identical jwt secrets", func(c *Config) { c.JWT.RefreshSecret = c.JWT.AccessSecret }, false},
		{"recovery secret reuses access secret", func(c *Config) { c.Recovery.Secret = c.JWT.AccessSecret }, false},
		{"recovery secret reuses refresh secret", func(c *Config) { c.Recovery.Secret = c.JWT.RefreshSecret }, false},
		{"leeway valid", func(c *Config) { c.JWT.Leeway = 30 * time.Second }, true},
		{"leeway too large", func(c *Config) { c.JWT.Leeway = 3 * time.Minute }, false},
		{"blank audience", func(c *Config) { c.JWT.Audience = "  " }, false},
		{"zero reset ttl", func(c *Config) { c.Recovery.ResetTTL = 0 }, false},
		{"relative base url", func(c *Config) { c.Recovery.PublicBaseURL = "/api" }, false},
		{"ftp base url", func(c *Config) { c.Recovery.PublicBaseURL = "ftp://host" }, false},
		{"https base url", func(c *Config) { c.Recovery.PublicBaseURL = "https://phonebook.example.com" }, true},
		{"tiny recovery tokens", func(c *Config) { c.Recovery.TokenBytes = 8 }, false},
		{"weak argon memory", func(c *Config) { c.Password.Memory = 1024 }, false},
		{"inverted password policy", func(c *Config) { c.Password.MaxLength = 3 }, false},
		{"rate limit without budget", func(c *Config) { c.RateLimit.MaxLoginAttempts = 0 }, false},
		{"rate limit disabled ignores budget", func(c *Config) {
			c.RateLimit.Enabled = false
			c.RateLimit.MaxLoginAttempts = 0
		}, true},
		{"histograms without metrics", func(c *Config) { c.Metrics.EnableLatencyHistograms = true }, false},
		{"audit without buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCloneConfigCopiesSecrets(t *testing.T) {
	cfg := validTestConfig()
	clone := cloneConfig(cfg)
	cfg.JWT.AccessSecret[0] = 'X'
	cfg.Recovery.Secret[0] = 'X'
	if clone.JWT.AccessSecret[0] == 'X' || clone.Recovery.Secret[0] == 'X' {
		t.Fatal("clone must not alias secret slices")
	}
}
