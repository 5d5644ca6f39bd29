package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kidpech/authbridge/internal/app/diagnostics"
	"github.com/kidpech/authbridge/internal/config"
	"github.com/kidpech/authbridge/internal/domain/authbridge"
	"github.com/kidpech/authbridge/internal/domain/authctx"
	"github.com/kidpech/authbridge/internal/domain/avatar"
	"github.com/kidpech/authbridge/internal/domain/login"
	dbinfra "github.com/kidpech/authbridge/internal/infrastructure/db"
	"github.com/kidpech/authbridge/internal/infrastructure/monitoring"
	"github.com/kidpech/authbridge/internal/infrastructure/ratelimit"
	redisinfra "github.com/kidpech/authbridge/internal/infrastructure/redis"
)

// App is the assembled HTTP front door.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Router   *gin.Engine
	Bridge   *authbridge.Bridge
	Sessions *authctx.Context
	Logins   *login.Service

	closers []func() error
}

// NewBridge builds the exchange client from configuration.
func NewBridge(cfg *config.Config, logger *zap.Logger) (*authbridge.Bridge, error) {
	registry, err := authbridge.ParseRegistry(cfg.Backend.Providers)
	if err != nil {
		return nil, err
	}
	return authbridge.New(authbridge.Options{
		BaseURL:       cfg.Backend.BaseURL,
		DefaultLocale: cfg.Backend.DefaultLocale,
		Timeout:       cfg.Backend.Timeout,
		Registry:      registry,
		Logger:        logger.Named("bridge"),
	})
}

// Build wires every dependency. Redis is optional: when it is not configured or
// unreachable, sessions and rate limits stay in memory.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if err := monitoring.InitSentry(cfg.Monitoring, cfg.App); err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	}
	monitoring.Init()

	bridge, err := NewBridge(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Bridge = bridge

	dbManager, err := dbinfra.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	a.closers = append(a.closers, dbManager.Close)

	var redisClient *redisinfra.Client
	if cfg.Redis.Addr != "" {
		client, err := redisinfra.Connect(ctx, cfg.Redis, logger)
		if err == nil {
			redisClient = client
			a.closers = append(a.closers, client.Close)
		} else {
			logger.Warn("redis connect failed, using memory stores", zap.Error(err))
		}
	}

	var store authctx.Store = authctx.NewMemoryStore()
	var ipLimiter, sessionLimiter ratelimit.Limiter
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient.Native, cfg.Session.KeyPrefix)
	}
	if cfg.RateLimit.Enabled {
		if redisClient != nil {
			ipLimiter = ratelimit.NewRedisLimiter(redisClient.Native, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.RedisPrefix+":ip")
			sessionLimiter = ratelimit.NewRedisLimiter(redisClient.Native, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.RedisPrefix+":session")
		} else {
			ipLimiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
			sessionLimiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
		}
	}
	a.Sessions = authctx.New(store, cfg.Session.TTL, logger.Named("authctx"))

	logBuffer := diagnostics.NewLogBuffer(cfg.Diagnostics.MaxLogLines)
	deps := login.ServiceDeps{
		Exchanger:  bridge,
		Publisher:  a.Sessions,
		Repository: dbinfra.NewAttemptRepository(dbManager.DB),
		Observer:   monitoring.AttemptObserver{},
		Sink:       logBuffer,
		Logger:     logger.Named("login"),
	}
	if cfg.Monitoring.SentryDSN != "" {
		deps.Reporter = monitoring.SentryReporter{}
	}
	a.Logins = login.NewService(deps)

	diagHandler := diagnostics.NewHandler(logBuffer, cfg.App.Version, map[string]diagnostics.Pinger{
		"database": dbManager,
		"sessions": a.Sessions,
	})
	loginHandler := login.NewHandler(a.Logins, a.Sessions, login.CookieConfig{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.CookieSecure,
		MaxAge: cfg.Session.TTL,
	})
	avatarHandler := avatar.NewHandler(avatar.NewResolver(cfg.Backend.BaseURL, cfg.Backend.DefaultAvatarPath))

	a.Router = NewRouter(RouterDeps{
		Config:         cfg,
		LoginHandler:   loginHandler,
		AvatarHandler:  avatarHandler,
		Diagnostics:    diagHandler,
		Sessions:       a.Sessions,
		Logger:         logger,
		LogBuffer:      logBuffer,
		IPLimiter:      ipLimiter,
		SessionLimiter: sessionLimiter,
	})
	return a, nil
}

// Close releases connections in reverse order.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	monitoring.Flush()
	return first
}
