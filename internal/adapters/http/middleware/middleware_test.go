package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedmill/quote-service/internal/adapters/http/dto"
	"github.com/feedmill/quote-service/internal/platform/config"
	"github.com/feedmill/quote-service/internal/platform/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// withLogger installs a JSON logger writing to buf as the request logger.
func withLogger(buf *bytes.Buffer) gin.HandlerFunc {
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: logging.LevelTrace}))
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), logger))
		c.Next()
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var e map[string]any
		require.NoError(t, dec.Decode(&e))
		entries = append(entries, e)
	}
	return entries
}

func TestIDMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		middleware gin.HandlerFunc
		header     string
		get        func(*gin.Context) string
		logKey     string
	}{
		{"request id", RequestID(), HeaderRequestID, GetRequestID, "request_id"},
		{"correlation id", CorrelationID(), HeaderCorrelationID, GetCorrelationID, "correlation_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name+" generated", func(t *testing.T) {
			var buf bytes.Buffer
			var captured string

			router := gin.New()
			router.Use(withLogger(&buf), tt.middleware)
			router.GET("/test", func(c *gin.Context) {
				captured = tt.get(c)
				logging.FromContext(c.Request.Context()).Info("inside")
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

			require.Len(t, captured, 36)
			assert.Equal(t, captured, w.Header().Get(tt.header))

			entries := decodeLines(t, &buf)
			require.Len(t, entries, 1)
			assert.Equal(t, captured, entries[0][tt.logKey])
		})

		t.Run(tt.name+" propagated", func(t *testing.T) {
			var captured string

			router := gin.New()
			router.Use(tt.middleware)
			router.GET("/test", func(c *gin.Context) {
				captured = tt.get(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set(tt.header, "upstream-123")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, "upstream-123", captured)
			assert.Equal(t, "upstream-123", w.Header().Get(tt.header))
		})
	}
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel string
		wantLogs  int
	}{
		{name: "success", path: "/api/v1/quotes", status: http.StatusOK, wantLevel: "INFO", wantLogs: 2},
		{name: "client error", path: "/api/v1/quotes", status: http.StatusNotFound, wantLevel: "WARN", wantLogs: 2},
		{name: "server error", path: "/api/v1/quotes", status: http.StatusInternalServerError, wantLevel: "ERROR", wantLogs: 2},
		{name: "internal route skipped", path: "/-/live", status: http.StatusOK, wantLogs: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			router := gin.New()
			router.Use(withLogger(&buf), Logging())
			router.GET(tt.path, func(c *gin.Context) { c.Status(tt.status) })

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path+"?x=1", nil))

			entries := decodeLines(t, &buf)
			require.Len(t, entries, tt.wantLogs)
			if tt.wantLogs == 0 {
				return
			}

			assert.Equal(t, "request started", entries[0]["msg"])
			done := entries[1]
			assert.Equal(t, "request completed", done["msg"])
			assert.Equal(t, tt.wantLevel, done["level"])
			assert.Equal(t, tt.path+"?x=1", done["path"])
			assert.Equal(t, tt.path, done["route"])
			assert.InDelta(t, float64(tt.status), done["status"], 0)
		})
	}
}

func TestRecovery(t *testing.T) {
	t.Run("panic becomes 500", func(t *testing.T) {
		var buf bytes.Buffer

		router := gin.New()
		router.Use(withLogger(&buf), Recovery())
		router.GET("/boom", func(*gin.Context) { panic("line item with zero quantity") })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, dto.ErrorCodeInternal, resp.Error.Code)
		assert.NotContains(t, w.Body.String(), "zero quantity")

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "panic recovered", entries[0]["msg"])
		assert.Equal(t, "line item with zero quantity", entries[0]["error"])
		assert.Contains(t, entries[0]["stack"], "runtime/debug.Stack")
	})

	t.Run("panic after write keeps status", func(t *testing.T) {
		router := gin.New()
		router.Use(Recovery())
		router.GET("/late", func(c *gin.Context) {
			c.String(http.StatusAccepted, "partial")
			panic("late")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/late", nil))

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "partial", w.Body.String())
	})
}

func TestTimeout(t *testing.T) {
	var deadline time.Time
	var ok bool

	router := gin.New()
	router.Use(Timeout(50 * time.Millisecond))
	router.GET("/slow", func(c *gin.Context) {
		deadline, ok = c.Request.Context().Deadline()
		<-c.Request.Context().Done()
		dto.HandleError(c, c.Request.Context().Err())
	})

	start := time.Now()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

	require.True(t, ok)
	assert.WithinDuration(t, start.Add(50*time.Millisecond), deadline, 40*time.Millisecond)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestTimeout_SilentHandler(t *testing.T) {
	router := gin.New()
	router.Use(Timeout(10 * time.Millisecond))
	router.GET("/silent", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	router.GET("/fast", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/silent", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrorCodeTimeout, resp.Error.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fast", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestExtractClaims(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.AuthConfig
		headers map[string]string
		want    Claims
	}{
		{
			name: "default headers",
			headers: map[string]string{
				"X-User-ID":     "seller-7",
				"X-User-Roles":  "seller, admin ,",
				"X-User-Scopes": "quotes:write  catalog:reload",
			},
			want: Claims{
				Subject: "seller-7",
				Roles:   []string{"seller", "admin"},
				Scopes:  []string{"quotes:write", "catalog:reload"},
			},
		},
		{
			name: "custom headers",
			cfg:  &config.AuthConfig{SubjectHeader: "X-Sub", RolesHeader: "X-Roles", ScopesHeader: "X-Scopes"},
			headers: map[string]string{
				"X-Sub":     "ops",
				"X-Roles":   "admin",
				"X-User-ID": "ignored",
			},
			want: Claims{Subject: "ops", Roles: []string{"admin"}, Scopes: []string{}},
		},
		{
			name: "no headers",
			want: Claims{Scopes: []string{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				c.Request.Header.Set(k, v)
			}

			got := ExtractClaims(c, tt.cfg)
			assert.Equal(t, tt.want.Subject, got.Subject)
			assert.Equal(t, tt.want.Roles, got.Roles)
			assert.ElementsMatch(t, tt.want.Scopes, got.Scopes)
		})
	}
}

func TestRequireRole(t *testing.T) {
	enabled := &config.AuthConfig{Enabled: true, AdminRole: "admin"}

	tests := []struct {
		name       string
		cfg        *config.AuthConfig
		headers    map[string]string
		wantStatus int
	}{
		{name: "auth disabled", cfg: &config.AuthConfig{}, wantStatus: http.StatusOK},
		{name: "nil config", cfg: nil, wantStatus: http.StatusOK},
		{name: "no subject", cfg: enabled, wantStatus: http.StatusUnauthorized},
		{
			name:       "missing role",
			cfg:        enabled,
			headers:    map[string]string{"X-User-ID": "seller-7", "X-User-Roles": "seller"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "admin",
			cfg:        enabled,
			headers:    map[string]string{"X-User-ID": "ops", "X-User-Roles": "seller,admin"},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var claims *Claims

			router := gin.New()
			router.POST("/reload", RequireAuth(tt.cfg), RequireRole(tt.cfg, "admin"), func(c *gin.Context) {
				claims = GetClaims(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/reload", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK && tt.cfg != nil && tt.cfg.Enabled {
				require.NotNil(t, claims)
				assert.True(t, claims.HasRole("admin"))
			}
			if tt.wantStatus >= http.StatusBadRequest {
				var resp dto.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.NotEmpty(t, resp.Error.Code)
			}
		})
	}
}
