package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crm/backend/internal/infrastructure/auth"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/crm/backend/internal/interfaces/http/handler"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))

	g := NewDomainGroup("customers", "/customers")
	g.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.Register(g).Setup()

	req := httptest.NewRequest(http.MethodGet, "/api/v2/customers/ping", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestRouterUse(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine).Use(func(c *gin.Context) {
		c.Header("X-Versioned", "yes")
		c.Next()
	})
	r.Register(NewDomainGroup("auth", "/auth").GET("/token", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})).Setup()
	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/auth/token", nil))
	assert.Equal(t, "yes", w.Header().Get("X-Versioned"))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, w.Header().Get("X-Versioned"))
}

func TestDomainGroup(t *testing.T) {
	t.Run("creates group with name and prefix", func(t *testing.T) {
		g := NewDomainGroup("customers", "/customers")
		assert.Equal(t, "customers", g.Name())
		assert.Equal(t, "/customers", g.Prefix())
	})

	t.Run("registers every method", func(t *testing.T) {
		engine := gin.New()
		ok := func(c *gin.Context) { c.String(http.StatusOK, c.Request.Method) }
		NewDomainGroup("items", "/items").
			GET("", ok).
			POST("", ok).
			PATCH("/:id", ok).
			DELETE("/:id", ok).
			RegisterRoutes(engine.Group("/api/v1"))

		for _, tc := range []struct{ method, path string }{
			{http.MethodGet, "/api/v1/items"},
			{http.MethodPost, "/api/v1/items"},
			{http.MethodPatch, "/api/v1/items/1"},
			{http.MethodDelete, "/api/v1/items/1"},
		} {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, http.StatusOK, w.Code, "%s %s", tc.method, tc.path)
			assert.Equal(t, tc.method, w.Body.String())
		}
	})

	t.Run("group middleware reaches subgroups", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("customers", "/customers").Use(func(c *gin.Context) {
			c.Header("X-Group", "customers")
			c.Next()
		})
		g.Group("products", "/:id/products").GET("", func(c *gin.Context) {
			c.String(http.StatusOK, c.Param("id"))
		})
		g.RegisterRoutes(engine.Group("/api/v1"))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/customers/c-1/products", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "c-1", w.Body.String())
		assert.Equal(t, "customers", w.Header().Get("X-Group"))
	})
}

func testConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			MaxBodySize: 1024,
		},
		Swagger: config.SwaggerConfig{Enabled: false},
		Telemetry: config.TelemetryConfig{
			ServiceName: "crm-backend-test",
		},
	}
}

func newTestEngine(t *testing.T, cfg *config.Config, limiter *middleware.RateLimiter) (*gin.Engine, *auth.JWTService) {
	t.Helper()
	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		AccessTokenExpiration: time.Hour,
		Issuer:                "crm-test",
	})
	// The use cases are never reached: every request below stops in middleware or binding.
	engine := NewEngine(Dependencies{
		Config:      cfg,
		Tokens:      jwtService,
		RateLimiter: limiter,
	}, Handlers{
		Customers: handler.NewCustomerHandler(nil),
		Products:  handler.NewProductHandler(nil),
		Stages:    handler.NewStageHandler(nil),
		Auth:      handler.NewAuthHandler(jwtService),
		Health:    handler.NewHealthHandler(nil),
	})
	return engine, jwtService
}

func serve(engine *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.RemoteAddr = "192.0.2.10:4321"
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	require.NotNil(t, resp.Error, w.Body.String())
	return resp.Error.Code
}

func TestNewEngine(t *testing.T) {
	engine, jwtService := newTestEngine(t, testConfig(), nil)
	token, err := jwtService.IssueToken("seller-7", "")
	require.NoError(t, err)

	t.Run("health is public and carries the global headers", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/health", "", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	})

	t.Run("token endpoint is public", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/api/v1/auth/token?subject=seller-7", "", "")

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp struct {
			Data auth.Token `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		claims, err := jwtService.ValidateAccessToken(resp.Data.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "seller-7", claims.Subject)
	})

	t.Run("customer routes require a token", func(t *testing.T) {
		for _, tc := range []struct{ method, path string }{
			{http.MethodGet, "/api/v1/customers"},
			{http.MethodPost, "/api/v1/customers"},
			{http.MethodGet, "/api/v1/customers/c-1/products"},
			{http.MethodPost, "/api/v1/customers/c-1/stage"},
			{http.MethodGet, "/api/v1/customers/c-1/stage/history"},
		} {
			w := serve(engine, tc.method, tc.path, "", "")
			assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
		}
	})

	t.Run("authenticated requests reach the handlers", func(t *testing.T) {
		for _, tc := range []struct{ method, path string }{
			{http.MethodPost, "/api/v1/customers"},
			{http.MethodPatch, "/api/v1/customers/c-1"},
			{http.MethodPost, "/api/v1/customers/c-1/products"},
			{http.MethodPatch, "/api/v1/customers/c-1/products/p-1"},
			{http.MethodPost, "/api/v1/customers/c-1/stage"},
		} {
			w := serve(engine, tc.method, tc.path, `{"unexpected":true}`, token.AccessToken)
			assert.Equal(t, http.StatusBadRequest, w.Code, "%s %s", tc.method, tc.path)
			assert.Equal(t, dto.ErrCodeInvalidJSON, errorCode(t, w))
		}
	})

	t.Run("search validates its query before the service", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/api/v1/customers/search", "", token.AccessToken)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, errorCode(t, w))
	})

	t.Run("oversized bodies are rejected", func(t *testing.T) {
		body := `{"name":"` + strings.Repeat("a", 2048) + `"}`
		w := serve(engine, http.MethodPost, "/api/v1/customers", body, token.AccessToken)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("docs are hidden when disabled", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/docs/index.html", "", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown routes are 404", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/api/v1/orders", "", token.AccessToken)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestNewEngine_RateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(2, time.Minute)
	t.Cleanup(limiter.Stop)
	engine, _ := newTestEngine(t, testConfig(), limiter)

	const token = "/api/v1/auth/token?subject=seller-7"
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, token, "", "").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, token, "", "").Code)

	w := serve(engine, http.MethodGet, token, "", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, dto.ErrCodeRateLimited, errorCode(t, w))

	t.Run("health is not throttled", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health", "", "").Code)
		}
	})
}

func TestNewEngine_LogsRouteGroups(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		AccessTokenExpiration: time.Hour,
		Issuer:                "crm-test",
	})
	NewEngine(Dependencies{
		Config: testConfig(),
		Logger: zap.New(core),
		Tokens: jwtService,
	}, Handlers{
		Customers: handler.NewCustomerHandler(nil),
		Products:  handler.NewProductHandler(nil),
		Stages:    handler.NewStageHandler(nil),
		Auth:      handler.NewAuthHandler(jwtService),
		Health:    handler.NewHealthHandler(nil),
	})

	prefixes := map[string]string{}
	for _, entry := range logs.FilterMessage("Registered route group").All() {
		fields := entry.ContextMap()
		prefixes[fields["group"].(string)] = fields["prefix"].(string)
	}
	assert.Equal(t, map[string]string{
		"auth":      "/api/v1/auth",
		"customers": "/api/v1/customers",
	}, prefixes)
}
