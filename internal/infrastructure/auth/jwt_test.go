package auth

import (
	"testing"
	"time"

	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		AccessTokenExpiration: time.Hour,
		Issuer:                "test-issuer",
	})
}

func TestNewJWTService(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:                "test-secret",
		AccessTokenExpiration: 15 * time.Minute,
		Issuer:                "test-issuer",
	}

	svc := NewJWTService(cfg)

	assert.NotNil(t, svc)
	assert.Equal(t, []byte(cfg.Secret), svc.secret)
	assert.Equal(t, cfg.AccessTokenExpiration, svc.GetAccessTokenExpiration())
	assert.Equal(t, cfg.Issuer, svc.issuer)
}

func TestIssueToken(t *testing.T) {
	t.Run("issues a one hour bearer token", func(t *testing.T) {
		svc := newTestJWTService()

		token, err := svc.IssueToken("api-client", "customers")

		require.NoError(t, err)
		assert.NotEmpty(t, token.AccessToken)
		assert.Equal(t, "Bearer", token.TokenType)
		assert.Equal(t, int64(3600), token.ExpiresIn)
		assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, 5*time.Second)
	})

	t.Run("generates a subject when none is given", func(t *testing.T) {
		svc := newTestJWTService()

		token, err := svc.IssueToken("", "")
		require.NoError(t, err)

		claims, err := svc.ValidateAccessToken(token.AccessToken)
		require.NoError(t, err)
		assert.Len(t, claims.Subject, 36)
	})

	t.Run("gives every token a distinct id", func(t *testing.T) {
		svc := newTestJWTService()

		a, err := svc.IssueToken("same", "")
		require.NoError(t, err)
		b, err := svc.IssueToken("same", "")
		require.NoError(t, err)

		ca, err := svc.ValidateAccessToken(a.AccessToken)
		require.NoError(t, err)
		cb, err := svc.ValidateAccessToken(b.AccessToken)
		require.NoError(t, err)
		assert.NotEqual(t, ca.ID, cb.ID)
	})
}

func TestValidateAccessToken_Success(t *testing.T) {
	svc := newTestJWTService()

	token, err := svc.IssueToken("api-client", "customers")
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token.AccessToken)

	require.NoError(t, err)
	assert.Equal(t, "api-client", claims.Subject)
	assert.Equal(t, "customers", claims.Scope)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.Greater(t, claims.GetRemainingTTL(), 59*time.Minute)
}

func TestValidateAccessToken_ExpiredToken(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		AccessTokenExpiration: -1 * time.Hour, // Already expired
		Issuer:                "test-issuer",
	})

	token, err := svc.IssueToken("api-client", "")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token.AccessToken)

	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateAccessToken_InvalidToken(t *testing.T) {
	svc := newTestJWTService()

	_, err := svc.ValidateAccessToken("invalid-token")

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAccessToken_DifferentSecret(t *testing.T) {
	token, err := newTestJWTService().IssueToken("api-client", "")
	require.NoError(t, err)

	other := NewJWTService(config.JWTConfig{
		Secret:                "different-secret-key-32-chars!",
		AccessTokenExpiration: time.Hour,
		Issuer:                "test-issuer",
	})

	_, err = other.ValidateAccessToken(token.AccessToken)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAccessToken_DifferentIssuer(t *testing.T) {
	token, err := newTestJWTService().IssueToken("api-client", "")
	require.NoError(t, err)

	other := NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		AccessTokenExpiration: time.Hour,
		Issuer:                "someone-else",
	})

	_, err = other.ValidateAccessToken(token.AccessToken)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAccessToken_RejectsNoneAlgorithm(t *testing.T) {
	svc := newTestJWTService()
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "api-client",
		Issuer:    "test-issuer",
		Audience:  jwt.ClaimStrings{"test-issuer"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(unsigned)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAccessToken_MissingSubject(t *testing.T) {
	svc := newTestJWTService()
	now := time.Now()
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "test-issuer",
		Audience:  jwt.ClaimStrings{"test-issuer"},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(now),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.secret)
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(signed)

	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestClaims_GetRemainingTTL(t *testing.T) {
	assert.Equal(t, time.Duration(0), (&Claims{}).GetRemainingTTL())

	past := &Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}}
	assert.Equal(t, time.Duration(0), past.GetRemainingTTL())
}
