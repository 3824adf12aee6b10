package phonebook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	internalaudit "github.com/MrEthical07/phonebook/internal/audit"
	"github.com/MrEthical07/phonebook/internal/limiters"
	"github.com/MrEthical07/phonebook/internal/rate"
	"github.com/MrEthical07/phonebook/jwt"
	"github.com/MrEthical07/phonebook/password"
	"github.com/MrEthical07/phonebook/recovery"
	"github.com/MrEthical07/phonebook/session"
	"go.uber.org/zap"
)

// Engine owns the account, session and recovery flows.
//
// Engine instances are built once by [Builder.Build] and are safe for
// concurrent use afterwards.
type Engine struct {
	config          Config
	users           UserStore
	sessions        SessionStore
	tokens          *jwt.Manager
	recovery        *recovery.Codec
	passwordHash    *password.Argon2
	loginLimiter    *rate.Limiter
	recoveryLimiter *limiters.RecoveryLimiter
	mailer          Mailer
	avatars         AvatarService
	audit           *internalaudit.Dispatcher
	metrics         *Metrics
	logger          *zap.Logger
	now             func() time.Time
}

// Close flushes queued audit events. The Engine must not be used after.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// AccessTTL returns the configured access-token lifetime.
func (e *Engine) AccessTTL() time.Duration {
	return e.config.JWT.AccessTTL
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.users != nil && e.sessions != nil && e.tokens != nil
}

// Login exchanges an email and password for a token pair and makes that
// pair the user's only session.
//
// An unknown email and a wrong password both fail with
// ErrInvalidCredentials after the same amount of hashing work. A correct
// password on an unverified account fails with ErrEmailNotVerified.
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricLoginLatency, time.Since(start)) }()
	}

	email = strings.TrimSpace(email)
	if email == "" || pass == "" {
		return nil, ErrValidation
	}
	ip := clientIPFromContext(ctx)

	if e.loginLimiter != nil {
		if err := e.loginLimiter.CheckLogin(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitAudit(ctx, auditEventLoginRateLimited, false, "", ErrLoginRateLimited, nil)
				return nil, ErrLoginRateLimited
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	user, err := e.users.ByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		e.passwordHash.DummyVerify(pass)
		e.recordLoginFailure(ctx, email, ip, "", ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	if !user.Verified {
		e.metricInc(MetricLoginUnverified)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, ErrEmailNotVerified, nil)
		return nil, ErrEmailNotVerified
	}

	ok, err := e.passwordHash.Verify(pass, user.PasswordHash)
	if err != nil && !errors.Is(err, password.ErrTooLong) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		e.recordLoginFailure(ctx, email, ip, user.ID, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	if e.loginLimiter != nil {
		if err := e.loginLimiter.ResetLogin(ctx, email); err != nil {
			e.logger.Warn("login limiter reset failed", zap.Error(err))
		}
	}
	e.upgradeHash(ctx, user, pass)

	result, err := e.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, nil, nil)
	return result, nil
}

func (e *Engine) recordLoginFailure(ctx context.Context, email, ip, userID string, cause error) {
	e.metricInc(MetricLoginFailure)
	if e.loginLimiter != nil {
		if err := e.loginLimiter.IncrementLogin(ctx, email, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			e.logger.Warn("login limiter increment failed", zap.Error(err))
		}
	}
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, cause, nil)
}

// upgradeHash re-hashes pass when the stored hash uses weaker parameters.
// Failure only costs the upgrade.
func (e *Engine) upgradeHash(ctx context.Context, user *User, pass string) {
	weaker, err := e.passwordHash.NeedsUpgrade(user.PasswordHash)
	if err != nil || !weaker {
		return
	}
	hash, err := e.passwordHash.Hash(pass)
	if err != nil {
		return
	}
	if err := e.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		e.logger.Warn("password rehash failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

// startSession mints a pair and replaces whatever session user had with
// one write.
func (e *Engine) startSession(ctx context.Context, user *User) (*LoginResult, error) {
	access, refresh, err := e.issuePair(user.ID)
	if err != nil {
		return nil, err
	}

	sess := session.New(user.ID, access.Value, refresh.Value, e.now(), refresh.ExpiresAt)
	if err := e.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metricInc(MetricSessionCreated)

	return &LoginResult{
		AccessToken:      access.Value,
		RefreshToken:     refresh.Value,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
		User:             user.View(),
	}, nil
}

func (e *Engine) issuePair(userID string) (jwt.Token, jwt.Token, error) {
	access, err := e.tokens.IssueAccess(userID)
	if err != nil {
		return jwt.Token{}, jwt.Token{}, err
	}
	refresh, err := e.tokens.IssueRefresh(userID)
	if err != nil {
		return jwt.Token{}, jwt.Token{}, err
	}
	return access, refresh, nil
}
