package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankbridge/backend/internal/infrastructure/config"
)

func newTestService(expiration time.Duration) *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars-long",
		AccessTokenExpiration: expiration,
		Issuer:                "bankbridge-test",
	})
}

func TestJWTService_GenerateAndValidate(t *testing.T) {
	svc := newTestService(15 * time.Minute)
	tenantID := uuid.New()
	userID := uuid.New()

	token, expiresAt, err := svc.GenerateAccessToken(GenerateTokenInput{
		TenantID: tenantID,
		UserID:   userID,
		Username: "ops",
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, time.Minute)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, tenantID.String(), claims.TenantID)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "ops", claims.Username)
	assert.Equal(t, "bankbridge-test", claims.Issuer)

	gotTenant, err := claims.GetTenantUUID()
	require.NoError(t, err)
	assert.Equal(t, tenantID, gotTenant)
}

func TestJWTService_ExpiredToken(t *testing.T) {
	svc := newTestService(-time.Minute)

	token, _, err := svc.GenerateAccessToken(GenerateTokenInput{
		TenantID: uuid.New(),
		UserID:   uuid.New(),
	})
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTService_WrongSecret(t *testing.T) {
	svc := newTestService(15 * time.Minute)
	other := NewJWTService(config.JWTConfig{
		Secret:                "a-completely-different-signing-secret!!",
		AccessTokenExpiration: 15 * time.Minute,
		Issuer:                "bankbridge-test",
	})

	token, _, err := svc.GenerateAccessToken(GenerateTokenInput{
		TenantID: uuid.New(),
		UserID:   uuid.New(),
	})
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_GarbageToken(t *testing.T) {
	svc := newTestService(15 * time.Minute)

	_, err := svc.ValidateAccessToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
