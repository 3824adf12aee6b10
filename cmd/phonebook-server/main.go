// Command phonebook-server runs the phonebook HTTP API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/phonebook"
	"github.com/MrEthical07/phonebook/avatar"
	"github.com/MrEthical07/phonebook/contacts"
	"github.com/MrEthical07/phonebook/httpapi"
	"github.com/MrEthical07/phonebook/internal/auditkafka"
	"github.com/MrEthical07/phonebook/internal/config"
	"github.com/MrEthical07/phonebook/internal/dbx"
	"github.com/MrEthical07/phonebook/internal/logging"
	"github.com/MrEthical07/phonebook/internal/memstore"
	"github.com/MrEthical07/phonebook/internal/migrations"
	contactsrepo "github.com/MrEthical07/phonebook/internal/repositories/contacts"
	sessionsrepo "github.com/MrEthical07/phonebook/internal/repositories/sessions"
	usersrepo "github.com/MrEthical07/phonebook/internal/repositories/users"
	"github.com/MrEthical07/phonebook/mailer"
	"github.com/MrEthical07/phonebook/metrics/export/prometheus"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", os.Getenv("PHONEBOOK_CONFIG"), "optional config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	var db *sql.DB
	if cfg.Database.DSN != "" {
		var err error
		db, err = dbx.Open(ctx, cfg.Database.DSN, dbx.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		defer db.Close()

		if cfg.Database.Migrate {
			if err := migrations.Up(ctx, db); err != nil {
				return err
			}
		}
	}

	var (
		users       phonebook.UserStore
		contactRepo contacts.Store
	)
	if db != nil {
		users = usersrepo.NewPostgresRepository(db)
		contactRepo = contactsrepo.NewPostgresRepository(db)
	} else {
		logger.Warn("database.dsn not set, accounts and contacts are kept in memory")
		users = memstore.NewUsers()
		contactRepo = memstore.NewContacts()
	}

	mail, err := newMailer(cfg.Mail, logger)
	if err != nil {
		return err
	}

	avatars, avatarDir, err := newAvatars(ctx, cfg.Avatar)
	if err != nil {
		return err
	}

	sink, closeSink, err := newAuditSink(ctx, cfg.Audit, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	builder := phonebook.New().
		WithConfig(cfg.Engine()).
		WithRedis(rdb).
		WithUserStore(users).
		WithMailer(mail).
		WithAvatarService(avatars).
		WithAuditSink(sink).
		WithLogger(logger.Named("engine"))

	if cfg.Session.Store == "postgres" {
		store := sessionsrepo.NewPostgresStore(db)
		builder = builder.WithSessionStore(store)
		if cfg.Session.SweepInterval > 0 {
			go store.Sweep(ctx, cfg.Session.SweepInterval, logger.Named("sweeper"))
		}
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	deps := httpapi.Deps{
		Engine:         engine,
		Contacts:       contacts.NewService(contactRepo),
		Logger:         logger.Named("http"),
		AvatarDir:      avatarDir,
		AvatarPrefix:   cfg.Avatar.URLPrefix,
		MaxUploadBytes: cfg.Avatar.MaxBytes,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = prometheus.NewExporter(engine).Handler()
		if cfg.Metrics.ReportInterval > 0 {
			stop, err := startOTelReporter(ctx, engine, cfg.Metrics.ReportInterval, logger.Named("metrics"))
			if err != nil {
				return fmt.Errorf("otel metrics: %w", err)
			}
			defer stop()
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      httpapi.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("sessions", cfg.Session.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func newMailer(cfg config.MailConfig, logger *zap.Logger) (phonebook.Mailer, error) {
	if cfg.Driver == "smtp" {
		return mailer.NewSMTP(mailer.SMTPConfig{
			Host:            cfg.Host,
			Port:            cfg.Port,
			Username:        cfg.Username,
			Password:        cfg.Password,
			From:            cfg.From,
			InsecureSkipTLS: cfg.InsecureSkipTLS,
		})
	}
	return mailer.NewLog(logger.Named("mail")), nil
}

// newAvatars returns the avatar service and, for file storage, the
// directory the router should serve.
func newAvatars(ctx context.Context, cfg config.AvatarConfig) (*avatar.Service, string, error) {
	if cfg.Storage == "s3" {
		store, err := avatar.NewS3Storage(ctx, avatar.S3Config{
			Region:       cfg.S3.Region,
			BaseEndpoint: cfg.S3.BaseEndpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			Bucket:       cfg.S3.Bucket,
			PublicURL:    cfg.S3.PublicURL,
		})
		if err != nil {
			return nil, "", err
		}
		return avatar.New(store), "", nil
	}

	store, err := avatar.NewFileStorage(cfg.Dir, cfg.URLPrefix)
	if err != nil {
		return nil, "", err
	}
	return avatar.New(store), store.Dir(), nil
}

func newAuditSink(ctx context.Context, cfg config.AuditConfig, logger *zap.Logger) (phonebook.AuditSink, func(), error) {
	logSink := logging.NewAuditSink(logger)
	switch cfg.Sink {
	case "kafka":
		k, err := auditkafka.New(ctx, auditkafka.Config{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			ClientID: "phonebook-server",
		}, logger.Named("auditkafka"))
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := k.Close(flushCtx); err != nil {
				logger.Warn("audit flush incomplete", zap.Error(err))
			}
		}
		return phonebook.MultiSink{logSink, k}, closeFn, nil
	case "log":
		return logSink, func() {}, nil
	default:
		return phonebook.NoOpSink{}, func() {}, nil
	}
}
