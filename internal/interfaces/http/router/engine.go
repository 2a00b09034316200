package router

import (
	"net/http"

	"github.com/bau/backend/internal/infrastructure/config"
	"github.com/bau/backend/internal/infrastructure/logger"
	"github.com/bau/backend/internal/infrastructure/telemetry"
	"github.com/bau/backend/internal/interfaces/http/handler"
	"github.com/bau/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers are the HTTP endpoints served by the engine
type Handlers struct {
	Provisioning *handler.ProvisioningHandler
	Companies    *handler.CompanyHandler
	Stream       *handler.ProgressStreamHandler
	System       *handler.SystemHandler
}

// EngineOptions carries the cross-cutting collaborators of the engine
type EngineOptions struct {
	Config *config.Config
	Logger *zap.Logger
	// Meter is optional; nil disables HTTP metrics
	Meter *telemetry.MeterProvider
	// Tokens guards the provisioning routes when auth is enabled
	Tokens middleware.TokenValidator
	// RateLimiter is optional; nil disables rate limiting
	RateLimiter *middleware.RateLimiter
}

// NewEngine assembles the gin engine: middleware stack first, then
// /health, then the versioned API.
func NewEngine(opts EngineOptions, h Handlers) *gin.Engine {
	cfg := opts.Config
	log := opts.Logger

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure(cfg.App.Env == "production"))
	engine.Use(middleware.CORS(middleware.CORSConfigFrom(cfg.HTTP)))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if opts.Meter.IsEnabled() {
		engine.Use(middleware.HTTPMetrics(opts.Meter, log))
	}
	if opts.RateLimiter != nil {
		engine.Use(middleware.RateLimit(opts.RateLimiter))
	}

	engine.GET("/health", h.System.Health)

	var guard []gin.HandlerFunc
	if cfg.Auth.Enabled {
		guard = append(guard, middleware.JWTAuthMiddleware(middleware.JWTMiddlewareConfig{
			Validator:       opts.Tokens,
			AllowQueryToken: true,
			Logger:          log,
		}))
	}

	Mount(engine, Group{
		Prefix:     "/api/" + APIVersion,
		Middleware: []gin.HandlerFunc{middleware.SpanErrorMarker()},
		Groups: []Group{
			{
				Prefix: "/system",
				Routes: []Route{
					{http.MethodGet, "/ping", h.System.Ping},
					{http.MethodGet, "/info", h.System.Info},
				},
			},
			{
				Prefix:     "/provisioning",
				Middleware: append(guard, middleware.TracingAttributeInjector()),
				Routes: []Route{
					{http.MethodPost, "/tenants", h.Provisioning.ProvisionTenant},
					{http.MethodGet, "/stream", h.Stream.Stream},
				},
				Groups: []Group{{
					Prefix: "/companies",
					Routes: []Route{
						{http.MethodGet, "", h.Companies.List},
						{http.MethodGet, "/:id", h.Companies.Get},
						{http.MethodGet, "/:id/logs", h.Companies.Logs},
					},
				}},
			},
		},
	})
	return engine
}
