package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/feedmill/quote-service/internal/adapters/http/dto"
	"github.com/feedmill/quote-service/internal/adapters/http/handlers"
	"github.com/feedmill/quote-service/internal/adapters/http/middleware"
	"github.com/feedmill/quote-service/internal/adapters/pdf"
	"github.com/feedmill/quote-service/internal/adapters/store"
	"github.com/feedmill/quote-service/internal/app"
	"github.com/feedmill/quote-service/internal/domain"
	"github.com/feedmill/quote-service/internal/platform/config"
	"github.com/feedmill/quote-service/internal/platform/metrics"
	"github.com/feedmill/quote-service/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServerConfig(maxRequestSize int64) *config.ServerConfig {
	return &config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           0,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: maxRequestSize,
	}
}

// staticCatalog serves a fixed catalog.
type staticCatalog struct{ catalog *domain.Catalog }

func (s staticCatalog) Load(context.Context) (*domain.Catalog, error) { return s.catalog, nil }

// newTestRouter wires the full service over an in-memory store and returns
// the engine with every route mounted.
func newTestRouter(t *testing.T, auth *config.AuthConfig, maxRequestSize int64) *gin.Engine {
	t.Helper()

	engine, err := buildRouter(auth, maxRequestSize, nil)
	require.NoError(t, err)

	return engine
}

func buildRouter(auth *config.AuthConfig, maxRequestSize int64, rateLimiter *limiter.Limiter) (*gin.Engine, error) {
	reg := prometheus.NewRegistry()
	quoteMetrics := metrics.NewQuotes(reg)

	provider := app.NewCatalogProvider(staticCatalog{domain.DefaultCatalog()}, quoteMetrics)
	if _, err := provider.Load(context.Background()); err != nil {
		return nil, err
	}

	seq := 0
	service := app.NewQuoteService(app.QuoteServiceConfig{
		Store:    store.NewMemory(time.Hour),
		Catalog:  provider,
		Renderer: pdf.NewRenderer(pdf.Config{}),
		Metrics:  quoteMetrics,
		Logger:   discardLogger(),
		NewID: func() string {
			seq++
			return fmt.Sprintf("q-%d", seq)
		},
	})

	registry := ports.NewHealthRegistry()
	if err := registry.Register(provider); err != nil {
		return nil, err
	}

	srv := New(testServerConfig(maxRequestSize), discardLogger())
	SetupRouter(srv.Engine(), RouterConfig{
		ServiceName:    "quote-service-test",
		Auth:           auth,
		HealthHandler:  handlers.NewHealthHandler(registry, handlers.NewBuildInfo("test", "abc", "now"), reg),
		QuoteHandler:   handlers.NewQuoteHandler(service),
		CatalogHandler: handlers.NewCatalogHandler(service),
		Timeout:        DefaultRequestTimeout,
		RateLimiter:    rateLimiter,
	})

	return srv.Engine(), nil
}

func serve(engine *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestServerNew(t *testing.T) {
	cfg := testServerConfig(1 << 20)
	logger := discardLogger()

	srv := New(cfg, logger)

	require.NotNil(t, srv)
	assert.NotNil(t, srv.Engine())
	assert.Equal(t, cfg, srv.config)
	assert.Equal(t, "127.0.0.1:0", srv.Addr())
	assert.Equal(t, cfg.ReadTimeout, srv.httpServer.ReadTimeout)
}

func TestServerStartShutdown(t *testing.T) {
	srv := New(testServerConfig(1<<20), discardLogger())
	srv.Engine().GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	errCh := srv.Start()
	time.Sleep(50 * time.Millisecond)

	select {
	case err := <-errCh:
		require.NoError(t, err)
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	_, ok := <-errCh
	assert.False(t, ok, "error channel should be closed")
}

func TestServerStart_AddressInUse(t *testing.T) {
	occupied := httptest.NewServer(http.NotFoundHandler())
	defer occupied.Close()

	srv := New(testServerConfig(1<<20), discardLogger())
	srv.httpServer.Addr = strings.TrimPrefix(occupied.URL, "http://")

	err := <-srv.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http server error")
}

func TestSetupRouter_RequestHeaders(t *testing.T) {
	engine := newTestRouter(t, nil, 1<<20)

	w := serve(engine, http.MethodPost, "/api/v1/quotes", "", map[string]string{
		middleware.HeaderCorrelationID: "order-42",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
	assert.Equal(t, "order-42", w.Header().Get(middleware.HeaderCorrelationID))
}

func TestSetupRouter_InternalRoutes(t *testing.T) {
	engine := newTestRouter(t, nil, 1<<20)

	w := serve(engine, http.MethodGet, "/-/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"catalog"`)

	w = serve(engine, http.MethodGet, "/-/build", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"test"`)

	require.Equal(t, http.StatusCreated, serve(engine, http.MethodPost, "/api/v1/quotes", "", nil).Code)

	w = serve(engine, http.MethodGet, "/-/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "quote_service_quotes_created_total 1")
	assert.Contains(t, w.Body.String(), "quote_service_catalog_products 3")
}

func TestSetupRouter_CatalogReloadAuth(t *testing.T) {
	tests := []struct {
		name       string
		auth       *config.AuthConfig
		headers    map[string]string
		wantStatus int
	}{
		{name: "auth disabled", auth: &config.AuthConfig{}, wantStatus: http.StatusOK},
		{
			name:       "anonymous",
			auth:       &config.AuthConfig{Enabled: true, AdminRole: "catalog-admin"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "seller",
			auth:       &config.AuthConfig{Enabled: true, AdminRole: "catalog-admin"},
			headers:    map[string]string{"X-User-ID": "s-1", "X-User-Roles": "seller"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "configured admin role",
			auth:       &config.AuthConfig{Enabled: true, AdminRole: "catalog-admin"},
			headers:    map[string]string{"X-User-ID": "ops", "X-User-Roles": "catalog-admin"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "custom headers",
			auth:       &config.AuthConfig{Enabled: true, SubjectHeader: "X-Sub", RolesHeader: "X-Roles"},
			headers:    map[string]string{"X-Sub": "ops", "X-Roles": DefaultAdminRole},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestRouter(t, tt.auth, 1<<20)

			w := serve(engine, http.MethodPost, "/api/v1/catalog/reload", "", tt.headers)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			// Reading the catalog never requires auth.
			assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/catalog", "", nil).Code)
		})
	}
}

func TestSetupRouter_MaxBodySize(t *testing.T) {
	engine := newTestRouter(t, nil, 64)
	require.Equal(t, http.StatusCreated, serve(engine, http.MethodPost, "/api/v1/quotes", "", nil).Code)

	small := `{"product":"Sal Mineral","quantity":1}`
	w := serve(engine, http.MethodPost, "/api/v1/quotes/q-1/items", small, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	large := `{"product":"Sal Mineral","quantity":1,"freight_per_unit":"` + strings.Repeat("0", 100) + `1"}`
	w = serve(engine, http.MethodPost, "/api/v1/quotes/q-1/items", large, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrorCodeBadRequest, resp.Error.Code)
}

func TestSetupRouter_NotFoundRoute(t *testing.T) {
	engine := newTestRouter(t, nil, 1<<20)
	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/api/v2/quotes", "", nil).Code)
}

func TestRouter_RateLimitAppliesToAPIOnly(t *testing.T) {
	engine, err := buildRouter(nil, 1<<20, limiter.New(memory.NewStore(), limiter.Rate{Period: time.Minute, Limit: 1}))
	require.NoError(t, err)

	w := serve(engine, http.MethodGet, "/api/v1/terms", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get(middleware.HeaderRateLimitLimit))

	w = serve(engine, http.MethodGet, "/api/v1/catalog", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrorCodeRateLimited, resp.Error.Code)

	for range 3 {
		w = serve(engine, http.MethodGet, "/-/live", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get(middleware.HeaderRateLimitLimit))
	}
}
