package banking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bankbridge/backend/internal/domain/banking"
)

func activeIntegration(t *testing.T, expiresIn time.Duration, now time.Time) *banking.BankIntegration {
	t.Helper()
	integration, err := banking.NewBankIntegration(uuid.New(), banking.BankCodeTinkoff, "client", "secret", true)
	require.NoError(t, err)
	integration.ApplyTokens("at-current", "rt-current", int64(expiresIn.Seconds()), now)
	return integration
}

func TestTokenService_EnsureValidTokenFor_NoRefreshNeeded(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	integration := activeIntegration(t, 10*time.Minute, now)

	integrationRepo := new(MockIntegrationRepo)
	provider := new(MockBankProvider)

	svc := NewTokenService(integrationRepo, &stubRegistry{provider: provider}, zap.NewNop())
	svc.now = func() time.Time { return now }

	token, err := svc.EnsureValidTokenFor(context.Background(), integration)
	require.NoError(t, err)
	assert.Equal(t, "at-current", token)

	// No refresh, no persistence
	provider.AssertNotCalled(t, "RefreshToken", mock.Anything, mock.Anything, mock.Anything)
	integrationRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestTokenService_EnsureValidTokenFor_RefreshInsideWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	// Expires in 4 minutes: inside the 5-minute look-ahead
	integration := activeIntegration(t, 4*time.Minute, now)

	integrationRepo := new(MockIntegrationRepo)
	integrationRepo.On("Save", mock.Anything, integration).Return(nil)

	provider := new(MockBankProvider)
	provider.On("RefreshToken", mock.Anything, mock.Anything, "rt-current").
		Return(&banking.TokenPair{AccessToken: "at-new", RefreshToken: "rt-new", ExpiresIn: 3600}, nil)

	svc := NewTokenService(integrationRepo, &stubRegistry{provider: provider}, zap.NewNop())
	svc.now = func() time.Time { return now }

	token, err := svc.EnsureValidTokenFor(context.Background(), integration)
	require.NoError(t, err)
	assert.Equal(t, "at-new", token)
	assert.Equal(t, "rt-new", integration.RefreshToken)
	assert.Equal(t, banking.IntegrationStatusActive, integration.Status)

	integrationRepo.AssertCalled(t, "Save", mock.Anything, integration)
}

func TestTokenService_EnsureValidTokenFor_RefreshRejected(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	integration := activeIntegration(t, 2*time.Minute, now)

	integrationRepo := new(MockIntegrationRepo)
	integrationRepo.On("Save", mock.Anything, integration).Return(nil)

	provider := new(MockBankProvider)
	provider.On("RefreshToken", mock.Anything, mock.Anything, "rt-current").
		Return(nil, errors.New("invalid_grant"))

	svc := NewTokenService(integrationRepo, &stubRegistry{provider: provider}, zap.NewNop())
	svc.now = func() time.Time { return now }

	_, err := svc.EnsureValidTokenFor(context.Background(), integration)
	require.Error(t, err)
	assert.ErrorIs(t, err, banking.ErrTokenRefreshFailed)

	// Rejected refresh is terminal until a human re-authorizes
	assert.Equal(t, banking.IntegrationStatusTokenExpired, integration.Status)
	assert.Contains(t, integration.LastError, "invalid_grant")
	integrationRepo.AssertCalled(t, "Save", mock.Anything, integration)
}

func TestTokenService_EnsureValidTokenFor_NoToken(t *testing.T) {
	integration, err := banking.NewBankIntegration(uuid.New(), banking.BankCodeTinkoff, "client", "secret", false)
	require.NoError(t, err)

	svc := NewTokenService(new(MockIntegrationRepo), &stubRegistry{}, zap.NewNop())

	_, err = svc.EnsureValidTokenFor(context.Background(), integration)
	assert.ErrorIs(t, err, banking.ErrNoToken)
}

func TestTokenService_EnsureValidToken_LoadsIntegration(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	integration := activeIntegration(t, time.Hour, now)
	tenantID := integration.TenantID

	integrationRepo := new(MockIntegrationRepo)
	integrationRepo.On("FindByIDForTenant", mock.Anything, tenantID, integration.GetID()).
		Return(integration, nil)

	svc := NewTokenService(integrationRepo, &stubRegistry{}, zap.NewNop())
	svc.now = func() time.Time { return now }

	result, err := svc.EnsureValidToken(context.Background(), tenantID, integration.GetID())
	require.NoError(t, err)
	assert.Equal(t, "at-current", result.AccessToken)
	assert.Equal(t, banking.BankCodeTinkoff, result.BankCode)
	assert.False(t, result.Refreshed)
}
