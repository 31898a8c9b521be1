package handler

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// HealthCheck pings one dependency
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler reports liveness and dependency health
type HealthHandler struct {
	BaseHandler
	checks    []HealthCheck
	timeout   time.Duration
	dbStats   func() (any, error)
	startTime time.Time
}

// HealthOption configures the HealthHandler
type HealthOption func(*HealthHandler)

// WithHealthTimeout bounds every dependency ping
func WithHealthTimeout(d time.Duration) HealthOption {
	return func(h *HealthHandler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithDatabaseStats adds connection pool statistics to the report
func WithDatabaseStats(stats func() (any, error)) HealthOption {
	return func(h *HealthHandler) {
		h.dbStats = stats
	}
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(checks []HealthCheck, opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{
		checks:    checks,
		timeout:   2 * time.Second,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthResponse is the health report
type HealthResponse struct {
	Status    string            `json:"status" example:"ok"`
	Checks    map[string]string `json:"checks,omitempty"`
	Database  any               `json:"database,omitempty"`
	Uptime    string            `json:"uptime" example:"1h30m45s"`
	GoVersion string            `json:"goVersion" example:"go1.25.5"`
}

// Health godoc
// @ID           health
// @Summary      Service health
// @Description  Pings the store, the cache and the broker. Any failing dependency turns the status to "degraded" with 503.
// @Tags         system
// @Produce      json
// @Success      200 {object} HealthResponse
// @Failure      503 {object} HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	var mu sync.Mutex
	results := make(map[string]string, len(h.checks))
	healthy := true

	var g errgroup.Group
	for _, check := range h.checks {
		g.Go(func() error {
			status := "ok"
			if err := check.Ping(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			results[check.Name] = status
			if status != "ok" {
				healthy = false
			}
			return nil
		})
	}
	_ = g.Wait()

	resp := HealthResponse{
		Status:    "ok",
		Checks:    results,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		GoVersion: runtime.Version(),
	}
	if h.dbStats != nil {
		if stats, err := h.dbStats(); err == nil {
			resp.Database = stats
		}
	}

	status := http.StatusOK
	if !healthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
