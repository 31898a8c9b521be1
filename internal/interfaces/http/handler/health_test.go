package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHealthRouter(h *HealthHandler) *gin.Engine {
	router := gin.New()
	router.GET("/health", h.Health)
	return router
}

func okPing(context.Context) error { return nil }

func TestHealthHandler_Health(t *testing.T) {
	t.Run("all dependencies up", func(t *testing.T) {
		h := NewHealthHandler([]HealthCheck{
			{Name: "database", Ping: okPing},
			{Name: "cache", Ping: okPing},
		}, WithDatabaseStats(func() (any, error) {
			return map[string]int{"open_connections": 3}, nil
		}))

		w := do(newHealthRouter(h), http.MethodGet, "/health", "")

		require.Equal(t, http.StatusOK, w.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, map[string]string{"database": "ok", "cache": "ok"}, resp.Checks)
		assert.NotNil(t, resp.Database)
		assert.NotEmpty(t, resp.GoVersion)
	})

	t.Run("a failing dependency degrades the report", func(t *testing.T) {
		h := NewHealthHandler([]HealthCheck{
			{Name: "database", Ping: okPing},
			{Name: "broker", Ping: func(context.Context) error { return errors.New("rabbitmq connection is closed") }},
		})

		w := do(newHealthRouter(h), http.MethodGet, "/health", "")

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "rabbitmq connection is closed", resp.Checks["broker"])
		assert.Equal(t, "ok", resp.Checks["database"])
	})

	t.Run("a slow dependency is bounded by the timeout", func(t *testing.T) {
		h := NewHealthHandler([]HealthCheck{
			{Name: "cache", Ping: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			}},
		}, WithHealthTimeout(20*time.Millisecond))

		start := time.Now()
		w := do(newHealthRouter(h), http.MethodGet, "/health", "")

		assert.Less(t, time.Since(start), time.Second)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("no checks is healthy", func(t *testing.T) {
		w := do(newHealthRouter(NewHealthHandler(nil)), http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
