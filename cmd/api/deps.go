package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"github.com/FilipeAphrody/authsys/internal/config"
	delivery "github.com/FilipeAphrody/authsys/internal/delivery/http"
	"github.com/FilipeAphrody/authsys/internal/domain"
	"github.com/FilipeAphrody/authsys/internal/jobs"
	"github.com/FilipeAphrody/authsys/internal/metrics"
	"github.com/FilipeAphrody/authsys/internal/notify"
	"github.com/FilipeAphrody/authsys/internal/repository"
	"github.com/FilipeAphrody/authsys/internal/usecase"
	"github.com/FilipeAphrody/authsys/pkg/security"
)

// app holds everything serve starts and later shuts down.
type app struct {
	cfg        *config.AppConfig
	log        zerolog.Logger
	db         *sql.DB
	redis      *redis.Client
	dispatcher *notify.Dispatcher
	scheduler  *jobs.Scheduler
	handler    http.Handler
}

// openPostgres opens the pool and verifies the connection.
func openPostgres(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "open").Wrap(err)
	}
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return db, nil
}

// openRedis connects and verifies the Redis client.
func openRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", cfg.Addr).Wrap(err)
	}
	return client, nil
}

// buildApp wires the store, mail pipeline, usecase, jobs and router from cfg.
func buildApp(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger, autoMigrate bool) (*app, error) {
	a := &app{cfg: cfg, log: log}

	var store domain.Store
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := openPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		a.db = db
		if autoMigrate {
			if err := repository.RunMigrations(ctx, db); err != nil {
				a.close()
				return nil, oops.Code("MIGRATION_FAILED").Wrap(err)
			}
		}
		store = repository.NewPostgresStore(db)
	default:
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		store = repository.NewMemoryStore()
	}

	var sender notify.Sender = notify.NewLogSender(log)
	if cfg.Mail.Driver == "redis" {
		client, err := openRedis(ctx, cfg.Redis)
		if err != nil {
			a.close()
			return nil, err
		}
		a.redis = client
		a.dispatcher = notify.NewDispatcher(client, notify.DispatcherConfig{
			Stream:   cfg.Mail.Stream,
			Group:    cfg.Mail.Group,
			Consumer: cfg.Mail.Consumer,
		}, sender, log)
		sender = notify.NewStreamSender(client, cfg.Mail.Stream)
	}

	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	tokens := security.NewTokenIssuer(security.TokenConfig{
		Secret:    cfg.Security.JWTSecret,
		Issuer:    cfg.Security.JWTIssuer,
		AccessTTL: cfg.Security.AccessTTL,
	}, nil)

	hasher := security.NewArgon2idHasher(security.HashParams{
		Memory:      cfg.Security.Argon2.Memory,
		Iterations:  cfg.Security.Argon2.Iterations,
		Parallelism: cfg.Security.Argon2.Parallelism,
		SaltLength:  cfg.Security.Argon2.SaltLength,
		KeyLength:   cfg.Security.Argon2.KeyLength,
	})

	auth, err := usecase.NewAuthUsecase(usecase.Deps{
		Store:    store,
		Notifier: notify.NewMailer(sender),
		Hasher:   hasher,
		Tokens:   tokens,
		Logger:   log,
		Metrics:  m,
	}, usecase.Config{
		RefreshTTL:              cfg.Security.RefreshTTL,
		TwoFactorTTL:            cfg.Security.TwoFactorTTL,
		InvalidatePreviousCodes: cfg.Security.InvalidatePreviousCodes,
		TwoFactorIssuer:         cfg.Security.TwoFactorIssuer,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.scheduler = jobs.NewScheduler(store.TwoFactorCodes(), cfg.Jobs.CodePurgeSchedule, cfg.Jobs.CodeRetention, log)

	a.handler = delivery.NewRouter(delivery.RouterConfig{
		Auth:    auth,
		Metrics: metrics.Handler(registry),
		Health:  a.health,
		Logger:  log,
		Version: version,
	})

	return a, nil
}

func (a *app) health(ctx context.Context) error {
	var errs []error
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close redis")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close database")
		}
	}
}
