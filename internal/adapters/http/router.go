package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"github.com/feedmill/quote-service/internal/adapters/http/handlers"
	"github.com/feedmill/quote-service/internal/adapters/http/middleware"
	"github.com/feedmill/quote-service/internal/platform/config"
	"github.com/feedmill/quote-service/internal/platform/telemetry"
)

// DefaultRequestTimeout is the default timeout for API requests.
const DefaultRequestTimeout = 30 * time.Second

// DefaultAdminRole is required to reload the catalog when auth is enabled
// and no role is configured.
const DefaultAdminRole = "admin"

// RouterConfig contains the handlers and settings mounted by SetupRouter.
type RouterConfig struct {
	// ServiceName labels spans and HTTP metrics.
	ServiceName string

	// Auth configures gateway-header authorization of admin routes.
	Auth *config.AuthConfig

	HealthHandler  *handlers.HealthHandler
	QuoteHandler   *handlers.QuoteHandler
	CatalogHandler *handlers.CatalogHandler

	// Timeout bounds each /api/v1 request. Zero disables it.
	Timeout time.Duration

	// RateLimiter limits /api/v1 requests per client IP. Nil disables it.
	RateLimiter *limiter.Limiter
}

// SetupRouter configures middleware and routes on the Gin engine.
// Middleware order, first to last: recovery, request ID, correlation ID,
// OpenTelemetry, logging, then the per-group rate limit and timeout.
//
// Route groups:
//   - /-/ internal probes and metrics, no auth and no timeout
//   - /api/v1/ quote API; catalog reload requires the admin role when
//     auth is enabled
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.CorrelationID(),
	)
	engine.Use(telemetry.Middleware(cfg.ServiceName)...)
	engine.Use(middleware.Logging())

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutesOnEngine(engine)
	}

	apiV1 := engine.Group("/api/v1")
	if cfg.RateLimiter != nil {
		apiV1.Use(middleware.RateLimit(cfg.RateLimiter))
	}
	if cfg.Timeout > 0 {
		apiV1.Use(middleware.Timeout(cfg.Timeout))
	}

	setupAPIRoutes(apiV1, cfg)
}

func setupAPIRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.QuoteHandler != nil {
		cfg.QuoteHandler.RegisterQuoteRoutes(rg)
	}

	if cfg.CatalogHandler != nil {
		cfg.CatalogHandler.RegisterCatalogRoutes(rg)

		adminRole := DefaultAdminRole
		if cfg.Auth != nil && cfg.Auth.AdminRole != "" {
			adminRole = cfg.Auth.AdminRole
		}
		rg.POST("/catalog/reload",
			middleware.RequireAuth(cfg.Auth),
			middleware.RequireRole(cfg.Auth, adminRole),
			cfg.CatalogHandler.Reload,
		)
	}
}
