package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crm/backend/internal/infrastructure/auth"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWTService(expiration time.Duration) *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		AccessTokenExpiration: expiration,
		Issuer:                "test-issuer",
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error
}

func newJWTRouter(v TokenValidator, skip ...string) *gin.Engine {
	router := gin.New()
	router.Use(JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{Validator: v, SkipPaths: skip}))
	router.GET("/api/v1/customers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"subject":    GetJWTSubject(c),
			"ctxSubject": logger.GetSubject(c.Request.Context()),
		})
	})
	router.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestJWTAuthMiddleware(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)
	router := newJWTRouter(svc, "/health")

	t.Run("accepts a valid bearer token", func(t *testing.T) {
		token, err := svc.IssueToken("ops@crm", "customers")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/customers", nil)
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ops@crm", body["subject"])
		assert.Equal(t, "ops@crm", body["ctxSubject"])
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/customers", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, dto.ErrCodeTokenInvalid, decodeError(t, rec).Code)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
	})

	t.Run("rejects a non bearer scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/customers", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a malformed token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/customers", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, dto.ErrCodeTokenInvalid, decodeError(t, rec).Code)
	})

	t.Run("reports an expired token", func(t *testing.T) {
		expired := newTestJWTService(-time.Minute)
		token, err := expired.IssueToken("ops@crm", "")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/customers", nil)
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, dto.ErrCodeTokenExpired, decodeError(t, rec).Code)
	})

	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		other := auth.NewJWTService(config.JWTConfig{
			Secret:                "another-secret-key-at-least-32-ch",
			AccessTokenExpiration: time.Minute,
			Issuer:                "test-issuer",
		})
		token, err := other.IssueToken("ops@crm", "")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/customers", nil)
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("skips configured paths", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestJWTAuthMiddleware_NilLogger(t *testing.T) {
	svc := newTestJWTService(time.Minute)
	router := gin.New()
	router.Use(JWTAuthMiddleware(svc, nil))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetJWTClaims(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetJWTClaims(c))
	assert.Empty(t, GetJWTSubject(c))

	claims := &auth.Claims{Scope: "customers"}
	c.Set(JWTClaimsKey, claims)
	c.Set(JWTSubjectKey, "ops@crm")
	assert.Same(t, claims, GetJWTClaims(c))
	assert.Equal(t, "ops@crm", GetJWTSubject(c))

	c.Set(JWTClaimsKey, "not claims")
	assert.Nil(t, GetJWTClaims(c))
}
