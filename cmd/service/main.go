// Package main is the entry point for the quote service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/feedmill/quote-service/internal/adapters/catalog"
	"github.com/feedmill/quote-service/internal/adapters/clients"
	"github.com/feedmill/quote-service/internal/adapters/http"
	"github.com/feedmill/quote-service/internal/adapters/http/handlers"
	"github.com/feedmill/quote-service/internal/adapters/pdf"
	"github.com/feedmill/quote-service/internal/adapters/store"
	"github.com/feedmill/quote-service/internal/app"
	"github.com/feedmill/quote-service/internal/platform/config"
	"github.com/feedmill/quote-service/internal/platform/logging"
	"github.com/feedmill/quote-service/internal/platform/metrics"
	"github.com/feedmill/quote-service/internal/platform/telemetry"
	"github.com/feedmill/quote-service/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// 1. Determine profile from environment
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging
	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(ctx); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	quoteMetrics := metrics.NewQuotes(prometheus.DefaultRegisterer)

	// 5. Create health registry
	healthRegistry := ports.NewHealthRegistry()

	// 6. Open the session store
	quoteStore, redisClient, closeStore, err := openStore(ctx, &cfg.Store, healthRegistry)
	if err != nil {
		return err
	}
	defer closeStore()

	rateLimiter, err := newRateLimiter(cfg, redisClient)
	if err != nil {
		return err
	}

	// 7. Load the product catalog (fail fast unless the fallback is enabled)
	source, err := newCatalogSource(&cfg.Catalog, logger)
	if err != nil {
		return err
	}
	catalogProvider := app.NewCatalogProvider(source, quoteMetrics)

	products, err := catalogProvider.Load(ctx)
	if err != nil {
		return err
	}
	logger.Info("catalog loaded", slog.Int("products", products.Len()))

	if err := healthRegistry.Register(catalogProvider); err != nil {
		return fmt.Errorf("registering catalog health check: %w", err)
	}

	// 8. Create the PDF renderer
	renderer, err := newRenderer(cfg)
	if err != nil {
		return err
	}

	// 9. Create quote service (application layer)
	quoteService := app.NewQuoteService(app.QuoteServiceConfig{
		Store:    quoteStore,
		Catalog:  catalogProvider,
		Renderer: renderer,
		Metrics:  quoteMetrics,
		Logger:   logger,
	})

	// 10. Create handlers
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)
	healthHandler := handlers.NewHealthHandler(healthRegistry, buildInfo, prometheus.DefaultGatherer)

	// 11. Create HTTP server and mount routes
	server := http.New(&cfg.Server, logger)
	http.SetupRouter(server.Engine(), http.RouterConfig{
		ServiceName:    cfg.App.Name,
		Auth:           &cfg.Auth,
		HealthHandler:  healthHandler,
		QuoteHandler:   handlers.NewQuoteHandler(quoteService),
		CatalogHandler: handlers.NewCatalogHandler(quoteService),
		Timeout:        cfg.Server.RequestTimeout,
		RateLimiter:    rateLimiter,
	})

	// 12. Start server (non-blocking)
	serverErr := server.Start()

	// 13. Wait for shutdown signal
	return waitForShutdown(ctx, logger, server, serverErr, cfg.Server.ShutdownTimeout)
}

// openStore builds the configured session store. The redis client is nil for
// the memory driver. The returned func releases its connections.
func openStore(ctx context.Context, cfg *config.StoreConfig, registry ports.HealthRegistry) (ports.QuoteStore, *redis.Client, func(), error) {
	if cfg.Driver != config.StoreDriverRedis {
		return store.NewMemory(cfg.TTL), nil, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	closeClient := func() {
		if err := client.Close(); err != nil {
			slog.Error("closing redis client", slog.Any("error", err))
		}
	}

	if err := redisotel.InstrumentTracing(client); err != nil {
		slog.Warn("redis tracing disabled", slog.Any("error", err))
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		slog.Warn("redis metrics disabled", slog.Any("error", err))
	}

	redisStore := store.NewRedis(client, cfg.TTL, cfg.Redis.KeyPrefix)
	if err := redisStore.Check(ctx); err != nil {
		closeClient()
		return nil, nil, nil, fmt.Errorf("connecting to session store: %w", err)
	}

	if err := registry.Register(redisStore); err != nil {
		closeClient()
		return nil, nil, nil, fmt.Errorf("registering session store health check: %w", err)
	}

	return redisStore, client, closeClient, nil
}

// newRateLimiter returns nil when server.rate_limit is empty. Counters live in
// redis when the session store does, so replicas share one budget.
func newRateLimiter(cfg *config.Config, client *redis.Client) (*limiter.Limiter, error) {
	if cfg.Server.RateLimit == "" {
		return nil, nil
	}

	rate, err := limiter.NewRateFromFormatted(cfg.Server.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("parsing server.rate_limit: %w", err)
	}

	if client == nil {
		return limiter.New(memory.NewStore(), rate), nil
	}

	limitStore, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: cfg.Store.Redis.KeyPrefix + "ratelimit",
	})
	if err != nil {
		return nil, fmt.Errorf("creating rate limit store: %w", err)
	}

	return limiter.New(limitStore, rate), nil
}

// newCatalogSource downloads the workbook when a URL is configured and reads
// it from disk otherwise.
func newCatalogSource(cfg *config.CatalogConfig, logger *slog.Logger) (ports.CatalogSource, error) {
	if cfg.URL == "" {
		return catalog.NewXLSXSource(catalog.XLSXConfig{
			Path:     cfg.Path,
			Sheet:    cfg.Sheet,
			Fallback: cfg.Fallback,
		}), nil
	}

	client, err := clients.New(&clients.Config{
		ServiceName: "catalog-files",
		Timeout:     cfg.Client.Timeout,
		MaxSize:     cfg.Client.MaxSize,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.CircuitBreaker,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating catalog client: %w", err)
	}

	return catalog.NewRemoteSource(catalog.RemoteConfig{URL: cfg.URL, Sheet: cfg.Sheet}, client), nil
}

func newRenderer(cfg *config.Config) (*pdf.Renderer, error) {
	threshold, err := decimal.NewFromString(cfg.Export.HighlightThreshold)
	if err != nil {
		return nil, fmt.Errorf("parsing export.highlight_threshold: %w", err)
	}

	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}

	return pdf.NewRenderer(pdf.Config{
		Title:              cfg.Export.Title,
		Footer:             cfg.Export.Footer,
		HighlightThreshold: threshold,
		Location:           loc,
	}), nil
}

// waitForShutdown blocks until a shutdown signal is received or server error occurs.
// It then performs graceful shutdown of the HTTP server.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	logger.Info("initiating graceful shutdown",
		slog.Duration("timeout", shutdownTimeout),
	)

	// Stop accepting new requests, drain in-flight
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}
