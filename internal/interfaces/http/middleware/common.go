package middleware

import (
	"fmt"
	"time"

	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader is the header requestid reads and echoes
const RequestIDHeader = "X-Request-ID"

// CORSConfigFromHTTP builds the cors configuration from HTTP settings.
// An empty origin list rejects every cross-origin request.
func CORSConfigFromHTTP(cfg config.HTTPConfig) cors.Config {
	c := cors.Config{
		AllowOrigins:     cfg.CORSAllowOrigins,
		AllowMethods:     cfg.CORSAllowMethods,
		AllowHeaders:     cfg.CORSAllowHeaders,
		ExposeHeaders:    []string{RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(c.AllowMethods) == 0 {
		c.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(c.AllowHeaders) == 0 {
		c.AllowHeaders = []string{"Content-Type", "Authorization", RequestIDHeader, "Accept", "Origin"}
	}
	for _, o := range c.AllowOrigins {
		if o == "*" {
			c.AllowOrigins = nil
			c.AllowAllOrigins = true
			// Browsers refuse credentials with a wildcard origin
			c.AllowCredentials = false
			break
		}
	}
	return c
}

// CORS returns the CORS middleware. With no configured origins it passes
// requests through without CORS headers.
func CORS(cfg config.HTTPConfig) gin.HandlerFunc {
	c := CORSConfigFromHTTP(cfg)
	if !c.AllowAllOrigins && len(c.AllowOrigins) == 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return cors.New(c)
}

// RequestID reuses an incoming X-Request-ID or generates a UUID and echoes it
// on the response.
func RequestID() gin.HandlerFunc {
	return requestid.New(requestid.WithGenerator(func() string {
		return uuid.NewString()
	}))
}

// SecurityConfig holds configuration for security headers
type SecurityConfig struct {
	HSTSEnabled           bool
	HSTSMaxAge            int // in seconds
	HSTSIncludeSubdomains bool

	// Content-Security-Policy directive; empty disables the header
	CSPDirective string
}

// DefaultSecurityConfig returns settings for a JSON API served over plain HTTP
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		CSPDirective:          "default-src 'none'; frame-ancestors 'none'",
	}
}

// Secure adds security headers to responses using default configuration
func Secure() gin.HandlerFunc {
	return SecureWithConfig(DefaultSecurityConfig())
}

// SecureWithConfig adds security headers to responses with custom configuration
func SecureWithConfig(cfg SecurityConfig) gin.HandlerFunc {
	var hstsValue string
	if cfg.HSTSEnabled {
		hstsValue = fmt.Sprintf("max-age=%d", cfg.HSTSMaxAge)
		if cfg.HSTSIncludeSubdomains {
			hstsValue += "; includeSubDomains"
		}
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if cfg.CSPDirective != "" {
			h.Set("Content-Security-Policy", cfg.CSPDirective)
		}
		if hstsValue != "" {
			h.Set("Strict-Transport-Security", hstsValue)
		}
		c.Next()
	}
}
