package banking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bankbridge/backend/internal/domain/banking"
	"github.com/bankbridge/backend/internal/domain/shared"
	"github.com/bankbridge/backend/internal/infrastructure/telemetry"
)

// oauthCallbackTTL is how long a consumed OAuth state is remembered for
// replay absorption. Banks and browsers both like to retry callbacks.
const oauthCallbackTTL = 15 * time.Minute

// IntegrationService manages the OAuth lifecycle of bank integrations:
// connecting a bank, running the authorize/callback dance, discovering
// accounts and disconnecting.
type IntegrationService struct {
	integrationRepo banking.BankIntegrationRepository
	accountRepo     banking.BankAccountRepository
	providers       banking.BankProviderRegistry
	tokens          *TokenService
	idempotency     shared.IdempotencyStore
	redirectURI     string
	logger          *zap.Logger
	now             func() time.Time
}

// NewIntegrationService creates a new IntegrationService
func NewIntegrationService(
	integrationRepo banking.BankIntegrationRepository,
	accountRepo banking.BankAccountRepository,
	providers banking.BankProviderRegistry,
	tokens *TokenService,
	idempotency shared.IdempotencyStore,
	redirectURI string,
	logger *zap.Logger,
) *IntegrationService {
	return &IntegrationService{
		integrationRepo: integrationRepo,
		accountRepo:     accountRepo,
		providers:       providers,
		tokens:          tokens,
		idempotency:     idempotency,
		redirectURI:     redirectURI,
		logger:          logger,
		now:             time.Now,
	}
}

// IntegrationResult is the client-facing view of an integration
type IntegrationResult struct {
	ID         uuid.UUID                 `json:"id"`
	BankCode   banking.BankCode          `json:"bank_code"`
	Status     banking.IntegrationStatus `json:"status"`
	Sandbox    bool                      `json:"sandbox"`
	LastError  string                    `json:"last_error,omitempty"`
	LastSyncAt *time.Time                `json:"last_sync_at,omitempty"`
}

// OAuthURLResult carries the authorize redirect built for the client
type OAuthURLResult struct {
	IntegrationID uuid.UUID `json:"integration_id"`
	AuthorizeURL  string    `json:"authorize_url"`
}

// CallbackResult reports the outcome of an OAuth callback
type CallbackResult struct {
	IntegrationID uuid.UUID                 `json:"integration_id"`
	BankCode      banking.BankCode          `json:"bank_code"`
	Status        banking.IntegrationStatus `json:"status"`
	Replayed      bool                      `json:"replayed"`
	AccountCount  int                       `json:"account_count"`
}

// ConnectBank registers a bank integration for a tenant. There is at most
// one integration per (tenant, bank code); reconnecting a disconnected or
// expired one replaces its credentials and resets it to PENDING.
func (s *IntegrationService) ConnectBank(ctx context.Context, tenantID uuid.UUID, bankCode banking.BankCode, clientID, clientSecret string, sandbox bool) (*IntegrationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bank_integration", "connect")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrBankCode, bankCode.String(),
	)

	if _, err := s.providers.Provider(bankCode); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	existing, err := s.integrationRepo.FindByBankCode(ctx, tenantID, bankCode)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to look up integration: %w", err)
	}

	if existing != nil {
		if existing.Status == banking.IntegrationStatusActive {
			err := shared.NewDomainError("INTEGRATION_EXISTS", "Bank is already connected for this company")
			telemetry.RecordError(span, err)
			return nil, err
		}
		existing.Reconnect(clientID, clientSecret, sandbox)
		if err := s.integrationRepo.Save(ctx, existing); err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to save integration: %w", err)
		}
		return toIntegrationResult(existing), nil
	}

	integration, err := banking.NewBankIntegration(tenantID, bankCode, clientID, clientSecret, sandbox)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.integrationRepo.Save(ctx, integration); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save integration: %w", err)
	}

	s.logger.Info("Bank integration created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("bank_code", bankCode.String()),
		zap.Bool("sandbox", sandbox))

	return toIntegrationResult(integration), nil
}

// GenerateOAuthURL issues a fresh CSRF state, persists it on the
// integration and builds the bank's authorize redirect
func (s *IntegrationService) GenerateOAuthURL(ctx context.Context, tenantID, integrationID uuid.UUID) (*OAuthURLResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bank_integration", "oauth_url")
	defer span.End()

	integration, err := s.integrationRepo.FindByIDForTenant(ctx, tenantID, integrationID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}

	provider, err := s.providers.Provider(integration.BankCode)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	state, err := generateOAuthState()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to generate oauth state: %w", err)
	}

	integration.BeginOAuth(state)
	if err := s.integrationRepo.Save(ctx, integration); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to persist oauth state: %w", err)
	}

	req := oauthRequest(integration)
	req.RedirectURI = s.redirectURI

	return &OAuthURLResult{
		IntegrationID: integration.GetID(),
		AuthorizeURL:  provider.AuthorizeURL(req, state),
	}, nil
}

// ExchangeCode finishes the OAuth dance: the callback's state locates the
// integration, the code is exchanged for tokens, and the bank's accounts
// are discovered. A replayed callback is absorbed by the idempotency
// store and reported as such instead of failing.
func (s *IntegrationService) ExchangeCode(ctx context.Context, state, code string) (*CallbackResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bank_integration", "exchange_code")
	defer span.End()

	fresh, err := s.idempotency.MarkProcessed(ctx, state, oauthCallbackTTL)
	if err != nil {
		// The store being down must not block the one legitimate callback
		s.logger.Warn("OAuth idempotency store unavailable", zap.Error(err))
		fresh = true
	}

	integration, err := s.integrationRepo.FindByOAuthState(ctx, state)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			if !fresh {
				// The first delivery already consumed the state
				return &CallbackResult{Replayed: true}, nil
			}
			telemetry.RecordError(span, banking.ErrOAuthStateMismatch)
			return nil, banking.ErrOAuthStateMismatch
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to look up oauth state: %w", err)
	}

	if err := integration.ValidateOAuthState(state); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	provider, err := s.providers.Provider(integration.BankCode)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	req := oauthRequest(integration)
	req.RedirectURI = s.redirectURI

	pair, err := provider.ExchangeAuthCode(ctx, req, code)
	if err != nil {
		integration.RecordError(err.Error())
		if saveErr := s.integrationRepo.Save(ctx, integration); saveErr != nil {
			s.logger.Error("Failed to record exchange failure", zap.Error(saveErr))
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	integration.ApplyTokens(pair.AccessToken, pair.RefreshToken, pair.ExpiresIn, s.now())
	integration.ClearOAuthState()
	if err := s.integrationRepo.Save(ctx, integration); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to persist tokens: %w", err)
	}

	s.logger.Info("Bank integration authorized",
		zap.String("integration_id", integration.GetID().String()),
		zap.String("bank_code", integration.BankCode.String()))

	// Discover accounts right away so the integration is usable without a
	// separate sync call. Failure here is not fatal: tokens are stored.
	count, err := s.syncAccounts(ctx, integration)
	if err != nil {
		s.logger.Warn("Account discovery after authorization failed",
			zap.String("integration_id", integration.GetID().String()),
			zap.Error(err))
	}

	return &CallbackResult{
		IntegrationID: integration.GetID(),
		BankCode:      integration.BankCode,
		Status:        integration.Status,
		AccountCount:  count,
	}, nil
}

// SyncAccounts re-discovers the bank's accounts for an integration and
// refreshes the cached balances
func (s *IntegrationService) SyncAccounts(ctx context.Context, tenantID, integrationID uuid.UUID) (*IntegrationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bank_integration", "sync_accounts")
	defer span.End()

	integration, err := s.integrationRepo.FindByIDForTenant(ctx, tenantID, integrationID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}

	if _, err := s.syncAccounts(ctx, integration); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return toIntegrationResult(integration), nil
}

// syncAccounts upserts the bank's account list keyed by account number
func (s *IntegrationService) syncAccounts(ctx context.Context, integration *banking.BankIntegration) (int, error) {
	token, err := s.tokens.EnsureValidTokenFor(ctx, integration)
	if err != nil {
		return 0, err
	}

	provider, err := s.providers.Provider(integration.BankCode)
	if err != nil {
		return 0, err
	}

	external, err := provider.ListAccounts(ctx, token, integration.Sandbox)
	if err != nil {
		return 0, fmt.Errorf("failed to list bank accounts: %w", err)
	}

	existing, err := s.accountRepo.FindByIntegration(ctx, integration.TenantID, integration.GetID())
	if err != nil {
		return 0, fmt.Errorf("failed to load accounts: %w", err)
	}
	byNumber := make(map[string]*banking.BankAccount, len(existing))
	for i := range existing {
		byNumber[existing[i].AccountNumber] = &existing[i]
	}

	now := s.now()
	for _, ext := range external {
		if account, ok := byNumber[ext.AccountNumber]; ok {
			account.Name = ext.Name
			account.UpdateBalance(ext.Balance, now)
			if err := s.accountRepo.Save(ctx, account); err != nil {
				return 0, fmt.Errorf("failed to save account: %w", err)
			}
			continue
		}

		account, err := banking.NewBankAccount(integration.TenantID, integration.GetID(), ext.AccountNumber, ext.Name, ext.Currency)
		if err != nil {
			return 0, err
		}
		account.UpdateBalance(ext.Balance, now)
		if err := s.accountRepo.Save(ctx, account); err != nil {
			return 0, fmt.Errorf("failed to save account: %w", err)
		}
	}
	return len(external), nil
}

// Disconnect clears tokens and marks the integration disconnected.
// Accounts and transaction history are kept.
func (s *IntegrationService) Disconnect(ctx context.Context, tenantID, integrationID uuid.UUID) (*IntegrationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bank_integration", "disconnect")
	defer span.End()

	integration, err := s.integrationRepo.FindByIDForTenant(ctx, tenantID, integrationID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}

	integration.Disconnect()
	if err := s.integrationRepo.Save(ctx, integration); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save integration: %w", err)
	}

	s.logger.Info("Bank integration disconnected",
		zap.String("integration_id", integration.GetID().String()),
		zap.String("bank_code", integration.BankCode.String()))

	return toIntegrationResult(integration), nil
}

// GetIntegration returns the client-facing view of one integration
func (s *IntegrationService) GetIntegration(ctx context.Context, tenantID, integrationID uuid.UUID) (*IntegrationResult, error) {
	integration, err := s.integrationRepo.FindByIDForTenant(ctx, tenantID, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return toIntegrationResult(integration), nil
}

func toIntegrationResult(i *banking.BankIntegration) *IntegrationResult {
	return &IntegrationResult{
		ID:         i.GetID(),
		BankCode:   i.BankCode,
		Status:     i.Status,
		Sandbox:    i.Sandbox,
		LastError:  i.LastError,
		LastSyncAt: i.LastSyncAt,
	}
}

// generateOAuthState returns 32 bytes of hex-encoded randomness
func generateOAuthState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
