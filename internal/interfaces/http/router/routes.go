package router

import (
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/crm/backend/internal/interfaces/http/handler"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const apiVersion = "v1"

// Handlers groups the HTTP handlers the API exposes
type Handlers struct {
	Customers *handler.CustomerHandler
	Products  *handler.ProductHandler
	Stages    *handler.StageHandler
	Auth      *handler.AuthHandler
	Health    *handler.HealthHandler
}

// Dependencies are the cross-cutting collaborators of the engine
type Dependencies struct {
	Config        *config.Config
	Logger        *zap.Logger
	Tokens        middleware.TokenValidator
	MeterProvider *telemetry.MeterProvider
	// RateLimiter is nil when rate limiting is disabled
	RateLimiter *middleware.RateLimiter
}

// NewEngine builds the gin engine with the global middleware chain and every route.
//
// Middleware order:
//  1. RequestID, so every later layer can log and tag it
//  2. Recovery and access logging
//  3. security headers and CORS
//  4. tracing, span status, HTTP metrics and profiling labels
//  5. body limit
//
// The rate limit is applied to the versioned API only, so health probes and
// the documentation are never throttled.
func NewEngine(deps Dependencies, h Handlers) *gin.Engine {
	cfg := deps.Config
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS(cfg.HTTP))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
		SkipPaths:   []string{"/health"},
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(deps.MeterProvider, log))

	profiling := middleware.DefaultProfilingConfig()
	profiling.Enabled = cfg.Telemetry.ProfilingEnabled
	engine.Use(middleware.Profiling(profiling))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	engine.GET("/health", h.Health.Health)

	jwtAuth := middleware.JWTAuthMiddleware(deps.Tokens, log)
	engine.GET("/docs/*any",
		middleware.SwaggerProtection(cfg.Swagger, jwtAuth),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	authRoutes := NewDomainGroup("auth", "/auth")
	authRoutes.GET("/token", h.Auth.Token)

	customerRoutes := NewDomainGroup("customers", "/customers").Use(jwtAuth)
	customerRoutes.
		POST("", h.Customers.Create).
		GET("", h.Customers.List).
		GET("/search", h.Customers.Search).
		GET("/stage/:stage", h.Customers.ListByStage).
		GET("/document/:document", h.Customers.GetByDocument).
		GET("/:id", h.Customers.Get).
		PATCH("/:id", h.Customers.Update).
		PATCH("/:id/inactivate", h.Customers.Inactivate).
		DELETE("/:id", h.Customers.Delete)

	customerRoutes.Group("products", "/:id/products").
		GET("", h.Products.List).
		POST("", h.Products.Add).
		PATCH("/:productId", h.Products.Update).
		DELETE("/:productId", h.Products.Remove)

	customerRoutes.Group("stage", "/:id/stage").
		GET("", h.Stages.Current).
		POST("", h.Stages.Change).
		GET("/history", h.Stages.History)

	api := NewRouter(engine, WithAPIVersion(apiVersion))
	if deps.RateLimiter != nil {
		api.Use(middleware.RateLimit(deps.RateLimiter))
	}
	for _, group := range []*DomainGroup{authRoutes, customerRoutes} {
		api.Register(group)
		log.Debug("Registered route group",
			zap.String("group", group.Name()),
			zap.String("prefix", "/api/"+apiVersion+group.Prefix()),
		)
	}
	api.Setup()

	return engine
}
