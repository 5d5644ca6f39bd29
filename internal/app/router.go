package app

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kidpech/authbridge/internal/app/diagnostics"
	"github.com/kidpech/authbridge/internal/app/middleware"
	"github.com/kidpech/authbridge/internal/config"
	"github.com/kidpech/authbridge/internal/domain/avatar"
	"github.com/kidpech/authbridge/internal/domain/login"
	"github.com/kidpech/authbridge/internal/infrastructure/ratelimit"
)

// RouterDeps aggregates HTTP dependencies.
type RouterDeps struct {
	Config         *config.Config
	LoginHandler   *login.Handler
	AvatarHandler  *avatar.Handler
	Diagnostics    *diagnostics.Handler
	Sessions       middleware.SessionResolver
	Logger         *zap.Logger
	LogBuffer      *diagnostics.LogBuffer
	IPLimiter      ratelimit.Limiter
	SessionLimiter ratelimit.Limiter
}

// NewRouter builds the gin engine.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config != nil && deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	cookieName := "authbridge_session"
	if deps.Config != nil && deps.Config.Session.CookieName != "" {
		cookieName = deps.Config.Session.CookieName
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	if deps.Config != nil {
		r.Use(middleware.CORS(deps.Config.Cors))
	}
	r.Use(middleware.OptionalSession(deps.Sessions, cookieName))
	if deps.Config == nil || deps.Config.RateLimit.Enabled {
		r.Use(middleware.RateLimit(deps.IPLimiter, deps.SessionLimiter))
	}
	r.Use(middleware.RequestLogger(deps.Logger, deps.LogBuffer))

	sessionMW := middleware.RequireSession(deps.Sessions, cookieName)

	api := r.Group("/api/v1")
	deps.Diagnostics.RegisterPublic(api)

	debug := r.Group("/api/v1")
	debug.Use(sessionMW)
	deps.Diagnostics.RegisterProtected(debug)

	if deps.Config == nil || deps.Config.Monitoring.PrometheusEnabled {
		api.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	deps.LoginHandler.RegisterRoutes(api, sessionMW)
	deps.AvatarHandler.RegisterRoutes(api, sessionMW)

	return r
}
