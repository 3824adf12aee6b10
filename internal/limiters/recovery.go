package limiters

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/phonebook/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrRecoveryRateLimited      = errors.New("recovery rate limited")
	ErrRecoveryRedisUnavailable = errors.New("recovery redis unavailable")
)

// Flow names a recovery endpoint with its own budget.
type Flow string

const (
	FlowResendVerification Flow = "verify"
	FlowForgotPassword     Flow = "reset"
)

type RecoveryConfig struct {
	EnableIPThrottle bool
	MaxRequests      int
	Window           time.Duration
}

// RecoveryLimiter caps how often one email, and optionally one IP, may ask
// for a recovery mail. Every request counts, known email or not, so the
// limiter itself does not reveal which addresses exist.
type RecoveryLimiter struct {
	window *rate.Window
	config RecoveryConfig
}

func NewRecoveryLimiter(rdb redis.UniversalClient, cfg RecoveryConfig) *RecoveryLimiter {
	return &RecoveryLimiter{window: rate.NewWindow(rdb), config: cfg}
}

// CheckRequest counts one request of flow and fails with
// ErrRecoveryRateLimited once a budget is spent.
func (l *RecoveryLimiter) CheckRequest(ctx context.Context, flow Flow, email, ip string) error {
	if l == nil {
		return nil
	}
	if err := l.hit(ctx, requestEmailKey(flow, email)); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.hit(ctx, requestIPKey(flow, ip)); err != nil {
			return err
		}
	}
	return nil
}

// Window returns the length of one budget window.
func (l *RecoveryLimiter) Window() time.Duration {
	return l.config.Window
}

func (l *RecoveryLimiter) hit(ctx context.Context, key string) error {
	_, err := l.window.Hit(ctx, key, l.config.MaxRequests, l.config.Window)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrRecoveryRateLimited
	default:
		return errors.Join(ErrRecoveryRedisUnavailable, err)
	}
}

func requestEmailKey(flow Flow, email string) string {
	return "pbr:" + string(flow) + ":" + strings.ToLower(strings.TrimSpace(email))
}

func requestIPKey(flow Flow, ip string) string {
	return "pbri:" + string(flow) + ":" + ip
}
