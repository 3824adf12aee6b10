package rate

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds login limiter tuning parameters.
type Config struct {
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

// Limiter counts failed logins per email and, optionally, per client IP.
type Limiter struct {
	window *Window
	config Config
}

// New creates a login [Limiter] backed by the given Redis client.
func New(rdb redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{window: NewWindow(rdb), config: cfg}
}

// CheckLogin fails with ErrRateLimited when the email or IP has used up its
// failure budget. It does not count the attempt.
func (l *Limiter) CheckLogin(ctx context.Context, email, ip string) error {
	if err := l.window.Exceeded(ctx, loginEmailKey(email), l.config.MaxLoginAttempts); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.window.Exceeded(ctx, loginIPKey(ip), l.config.MaxLoginAttempts); err != nil {
			return err
		}
	}
	return nil
}

// IncrementLogin records one failed login.
func (l *Limiter) IncrementLogin(ctx context.Context, email, ip string) error {
	if _, err := l.window.Hit(ctx, loginEmailKey(email), l.config.MaxLoginAttempts, l.config.LoginCooldownDuration); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if _, err := l.window.Hit(ctx, loginIPKey(ip), l.config.MaxLoginAttempts, l.config.LoginCooldownDuration); err != nil {
			return err
		}
	}
	return nil
}

// ResetLogin clears the per-email counter after a successful login. The IP
// counter is left alone so one good account cannot launder an IP.
func (l *Limiter) ResetLogin(ctx context.Context, email string) error {
	return l.window.Reset(ctx, loginEmailKey(email))
}

// LoginAttempts returns the failures counted for email in the open window.
func (l *Limiter) LoginAttempts(ctx context.Context, email string) (int, error) {
	return l.window.Count(ctx, loginEmailKey(email))
}

func loginEmailKey(email string) string {
	return "pbl:" + strings.ToLower(strings.TrimSpace(email))
}

func loginIPKey(ip string) string {
	return "pbli:" + ip
}
