package phonebook

import (
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/phonebook/internal/audit"
	"github.com/MrEthical07/phonebook/internal/limiters"
	"github.com/MrEthical07/phonebook/internal/rate"
	"github.com/MrEthical07/phonebook/jwt"
	"github.com/MrEthical07/phonebook/password"
	"github.com/MrEthical07/phonebook/recovery"
	"github.com/MrEthical07/phonebook/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users    UserStore
	sessions SessionStore
	mailer   Mailer
	avatars  AvatarService

	auditSink AuditSink
	logger    *zap.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client used by the rate limiters and, unless
// WithSessionStore is also called, by the session store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithSessionStore overrides the Redis session store, for example with the
// Postgres one.
func (b *Builder) WithSessionStore(store SessionStore) *Builder {
	b.sessions = store
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithAvatarService(a AvatarService) *Builder {
	b.avatars = a
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock replaces time.Now for token issuance, session expiry and reset
// deadlines.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer required")
	}
	if b.sessions == nil && b.redis == nil {
		return nil, errors.New("session store or redis client required")
	}
	if cfg.RateLimit.Enabled && b.redis == nil {
		return nil, errors.New("RateLimit requires redis client")
	}

	now := b.clock
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// -------- TOKENS --------
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	codec, err := recovery.NewCodec(cfg.Recovery.Secret, cfg.Recovery.TokenBytes)
	if err != nil {
		return nil, err
	}

	// -------- PASSWORD --------
	hasher, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MinPasswordBytes: cfg.Password.MinLength,
		MaxPasswordBytes: cfg.Password.MaxLength,
	})
	if err != nil {
		return nil, err
	}

	// -------- SESSION STORE --------
	sessions := b.sessions
	if sessions == nil {
		sessions = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix).WithClock(now)
	}

	// -------- RATE LIMITS --------
	var (
		loginLimiter    *rate.Limiter
		recoveryLimiter *limiters.RecoveryLimiter
	)
	if cfg.RateLimit.Enabled {
		loginLimiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:      cfg.RateLimit.EnableIPThrottle,
			MaxLoginAttempts:      cfg.RateLimit.MaxLoginAttempts,
			LoginCooldownDuration: cfg.RateLimit.LoginCooldownDuration,
		})
		recoveryLimiter = limiters.NewRecoveryLimiter(b.redis, limiters.RecoveryConfig{
			EnableIPThrottle: cfg.RateLimit.EnableIPThrottle,
			MaxRequests:      cfg.RateLimit.MaxRecoveryRequests,
			Window:           cfg.RateLimit.RecoveryWindow,
		})
	}

	engine := &Engine{
		config:          cfg,
		users:           b.users,
		sessions:        sessions,
		tokens:          tokens,
		recovery:        codec,
		passwordHash:    hasher,
		loginLimiter:    loginLimiter,
		recoveryLimiter: recoveryLimiter,
		mailer:          b.mailer,
		avatars:         b.avatars,
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			OnSinkPanic: func(ev AuditEvent, err error) {
				logger.Error("audit sink failed", zap.String("event", ev.EventType), zap.Error(err))
			},
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		now:     now,
	}

	b.built = true
	return engine, nil
}
