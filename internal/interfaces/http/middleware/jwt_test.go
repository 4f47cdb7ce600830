package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bankbridge/backend/internal/infrastructure/auth"
	"github.com/bankbridge/backend/internal/infrastructure/config"
)

func newTestJWTService(t *testing.T, expiration time.Duration) *auth.JWTService {
	t.Helper()
	return auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars-long",
		AccessTokenExpiration: expiration,
		Issuer:                "bankbridge-test",
	})
}

func newProtectedRouter(svc *auth.JWTService, skipPaths []string) *gin.Engine {
	r := gin.New()
	r.Use(JWTAuthMiddleware(JWTMiddlewareConfig{
		JWTService: svc,
		SkipPaths:  skipPaths,
		Logger:     zap.NewNop(),
	}))
	r.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tenant_id": GetJWTTenantID(c)})
	})
	r.GET("/public", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestJWTAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("valid token passes and sets tenant context", func(t *testing.T) {
		svc := newTestJWTService(t, time.Hour)
		tenantID := uuid.New()
		token, _, err := svc.GenerateAccessToken(auth.GenerateTokenInput{
			TenantID: tenantID,
			UserID:   uuid.New(),
			Username: "accountant",
		})
		require.NoError(t, err)

		r := newProtectedRouter(svc, nil)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), tenantID.String())
	})

	t.Run("missing header returns 401", func(t *testing.T) {
		r := newProtectedRouter(newTestJWTService(t, time.Hour), nil)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header returns 401", func(t *testing.T) {
		r := newProtectedRouter(newTestJWTService(t, time.Hour), nil)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token returns token expired code", func(t *testing.T) {
		svc := newTestJWTService(t, -time.Minute)
		token, _, err := svc.GenerateAccessToken(auth.GenerateTokenInput{
			TenantID: uuid.New(),
			UserID:   uuid.New(),
		})
		require.NoError(t, err)

		r := newProtectedRouter(newTestJWTService(t, time.Hour), nil)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_TOKEN_EXPIRED")
	})

	t.Run("token signed with different secret returns invalid code", func(t *testing.T) {
		other := auth.NewJWTService(config.JWTConfig{
			Secret:                "another-secret-key-also-32-characters",
			AccessTokenExpiration: time.Hour,
			Issuer:                "bankbridge-test",
		})
		token, _, err := other.GenerateAccessToken(auth.GenerateTokenInput{
			TenantID: uuid.New(),
			UserID:   uuid.New(),
		})
		require.NoError(t, err)

		r := newProtectedRouter(newTestJWTService(t, time.Hour), nil)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_TOKEN_INVALID")
	})

	t.Run("skip paths bypass authentication", func(t *testing.T) {
		r := newProtectedRouter(newTestJWTService(t, time.Hour), []string{"/public"})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/public", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
