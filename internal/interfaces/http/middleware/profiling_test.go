package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func labelsOf(ctx context.Context) map[string]string {
	out := map[string]string{}
	pprof.ForLabels(ctx, func(k, v string) bool {
		out[k] = v
		return true
	})
	return out
}

func TestDefaultProfilingConfig(t *testing.T) {
	cfg := middleware.DefaultProfilingConfig()

	assert.True(t, cfg.Enabled)
	assert.Contains(t, cfg.SkipPaths, "/health")
	assert.Contains(t, cfg.SkipPathPrefixes, "/docs")
}

func TestProfiling(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("disabled passes through", func(t *testing.T) {
		r := gin.New()
		r.Use(middleware.Profiling(middleware.ProfilingConfig{Enabled: false}))
		var labels map[string]string
		r.GET("/api/v1/customers", func(c *gin.Context) {
			labels = labelsOf(c.Request.Context())
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/customers", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, labels)
	})

	t.Run("labels the request context", func(t *testing.T) {
		r := gin.New()
		r.Use(middleware.Profiling(middleware.DefaultProfilingConfig()))
		var labels map[string]string
		r.PATCH("/api/v1/customers/:id/stage", func(c *gin.Context) {
			labels = labelsOf(c.Request.Context())
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/api/v1/customers/abc/stage", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, http.MethodPatch, labels[telemetry.ProfilingLabelMethod])
		assert.Equal(t, "/api/v1/customers/:id/stage", labels[telemetry.ProfilingLabelRoute])
		assert.Equal(t, "customers", labels[telemetry.ProfilingLabelResource])
	})

	t.Run("skips configured paths and prefixes", func(t *testing.T) {
		r := gin.New()
		r.Use(middleware.Profiling(middleware.DefaultProfilingConfig()))
		var labels map[string]string
		handler := func(c *gin.Context) {
			labels = labelsOf(c.Request.Context())
			c.Status(http.StatusOK)
		}
		r.GET("/health", handler)
		r.GET("/docs/*any", handler)

		for _, path := range []string{"/health", "/docs/index.html"} {
			labels = nil
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, w.Code, path)
			assert.Empty(t, labels, path)
		}
	})
}
