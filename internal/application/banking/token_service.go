package banking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bankbridge/backend/internal/domain/banking"
	"github.com/bankbridge/backend/internal/infrastructure/telemetry"
)

// TokenService keeps integration access tokens usable. Every bank call
// goes through the token service, which refreshes proactively inside the
// expiry look-ahead window so callers never hand the bank a token that is
// about to die mid-request.
type TokenService struct {
	integrationRepo banking.BankIntegrationRepository
	providers       banking.BankProviderRegistry
	logger          *zap.Logger
	now             func() time.Time
}

// NewTokenService creates a new TokenService
func NewTokenService(
	integrationRepo banking.BankIntegrationRepository,
	providers banking.BankProviderRegistry,
	logger *zap.Logger,
) *TokenService {
	return &TokenService{
		integrationRepo: integrationRepo,
		providers:       providers,
		logger:          logger,
		now:             time.Now,
	}
}

// TokenResult describes the token handed out for a bank call
type TokenResult struct {
	IntegrationID uuid.UUID        `json:"integration_id"`
	BankCode      banking.BankCode `json:"bank_code"`
	AccessToken   string           `json:"-"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
	Refreshed     bool             `json:"refreshed"`
}

// EnsureValidToken loads the integration and returns an access token that
// is safe to use for at least the refresh look-ahead window
func (s *TokenService) EnsureValidToken(ctx context.Context, tenantID, integrationID uuid.UUID) (*TokenResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bank_token", "ensure_valid")
	defer span.End()

	integration, err := s.integrationRepo.FindByIDForTenant(ctx, tenantID, integrationID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}

	wasExpiring := integration.TokenNeedsRefresh(s.now())
	token, err := s.EnsureValidTokenFor(ctx, integration)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return &TokenResult{
		IntegrationID: integration.GetID(),
		BankCode:      integration.BankCode,
		AccessToken:   token,
		ExpiresAt:     integration.TokenExpiresAt,
		Refreshed:     wasExpiring,
	}, nil
}

// EnsureValidTokenFor returns a usable access token for an already-loaded
// integration. When the stored token is close to expiry it is refreshed
// and the rotated pair is persisted before the token is handed out. A
// rejected refresh marks the integration TOKEN_EXPIRED; that state is
// terminal until a human re-authorizes.
func (s *TokenService) EnsureValidTokenFor(ctx context.Context, integration *banking.BankIntegration) (string, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bank_token", "ensure_valid_for")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrIntegrationID, integration.GetID().String(),
		telemetry.SpanAttrBankCode, integration.BankCode.String(),
	)

	if !integration.HasToken() {
		telemetry.RecordError(span, banking.ErrNoToken)
		return "", banking.ErrNoToken
	}

	if !integration.TokenNeedsRefresh(s.now()) {
		return integration.AccessToken, nil
	}

	provider, err := s.providers.Provider(integration.BankCode)
	if err != nil {
		telemetry.RecordError(span, err)
		return "", err
	}

	pair, err := provider.RefreshToken(ctx, oauthRequest(integration), integration.RefreshToken)
	if err != nil {
		s.logger.Warn("Token refresh rejected by bank",
			zap.String("integration_id", integration.GetID().String()),
			zap.String("bank_code", integration.BankCode.String()),
			zap.Error(err))

		integration.MarkTokenExpired(err.Error())
		if saveErr := s.integrationRepo.Save(ctx, integration); saveErr != nil {
			telemetry.RecordError(span, saveErr)
			return "", fmt.Errorf("failed to persist expired integration: %w", saveErr)
		}

		telemetry.RecordError(span, err)
		return "", fmt.Errorf("%w: %v", banking.ErrTokenRefreshFailed, err)
	}

	integration.ApplyTokens(pair.AccessToken, pair.RefreshToken, pair.ExpiresIn, s.now())
	if err := s.integrationRepo.Save(ctx, integration); err != nil {
		telemetry.RecordError(span, err)
		return "", fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	s.logger.Info("Access token refreshed",
		zap.String("integration_id", integration.GetID().String()),
		zap.String("bank_code", integration.BankCode.String()))

	return integration.AccessToken, nil
}

// oauthRequest builds the per-integration OAuth parameters for a
// token-endpoint call
func oauthRequest(integration *banking.BankIntegration) banking.OAuthRequest {
	return banking.OAuthRequest{
		ClientID:     integration.ClientID,
		ClientSecret: integration.ClientSecret,
		Sandbox:      integration.Sandbox,
	}
}
