package banking

import (
	"time"

	"github.com/bankbridge/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// tokenRefreshWindow is the look-ahead window before token expiry within
// which a proactive refresh must be attempted.
const tokenRefreshWindow = 5 * time.Minute

// BankCode identifies a supported bank API
type BankCode string

const (
	BankCodeTinkoff BankCode = "TINKOFF"
	BankCodeSber    BankCode = "SBER"
	BankCodeAlfa    BankCode = "ALFA"
)

// IsValid returns true if the bank code is one of the supported banks
func (c BankCode) IsValid() bool {
	switch c {
	case BankCodeTinkoff, BankCodeSber, BankCodeAlfa:
		return true
	}
	return false
}

// String returns the string representation of BankCode
func (c BankCode) String() string {
	return string(c)
}

// IntegrationStatus represents the lifecycle status of a bank integration
type IntegrationStatus string

const (
	IntegrationStatusPending      IntegrationStatus = "PENDING"       // OAuth never completed
	IntegrationStatusActive       IntegrationStatus = "ACTIVE"        // Tokens issued and usable
	IntegrationStatusTokenExpired IntegrationStatus = "TOKEN_EXPIRED" // Refresh rejected, needs re-authorization
	IntegrationStatusError        IntegrationStatus = "ERROR"         // Last operation against the bank failed
	IntegrationStatusDisconnected IntegrationStatus = "DISCONNECTED"  // Explicitly disconnected, tokens cleared
)

// IsValid checks if the status is a valid IntegrationStatus
func (s IntegrationStatus) IsValid() bool {
	switch s {
	case IntegrationStatusPending, IntegrationStatusActive, IntegrationStatusTokenExpired,
		IntegrationStatusError, IntegrationStatusDisconnected:
		return true
	}
	return false
}

// String returns the string representation of IntegrationStatus
func (s IntegrationStatus) String() string {
	return string(s)
}

// BankIntegration represents one OAuth-connected bank for a tenant.
// There is at most one integration per (tenant, bank code).
type BankIntegration struct {
	shared.TenantAggregateRoot
	BankCode       BankCode          `json:"bank_code"`
	ClientID       string            `json:"client_id"`
	ClientSecret   string            `json:"-"`
	AccessToken    string            `json:"-"`
	RefreshToken   string            `json:"-"`
	TokenExpiresAt *time.Time        `json:"token_expires_at,omitempty"`
	OAuthState     string            `json:"-"`
	Sandbox        bool              `json:"sandbox"`
	Status         IntegrationStatus `json:"status"`
	LastError      string            `json:"last_error,omitempty"`
	LastSyncAt     *time.Time        `json:"last_sync_at,omitempty"`
}

// NewBankIntegration creates a new, not-yet-authorized bank integration
func NewBankIntegration(tenantID uuid.UUID, bankCode BankCode, clientID, clientSecret string, sandbox bool) (*BankIntegration, error) {
	if !bankCode.IsValid() {
		return nil, shared.NewDomainError("INVALID_BANK_CODE", "Bank code is not supported")
	}
	if clientID == "" || clientSecret == "" {
		return nil, shared.NewDomainError("INVALID_CREDENTIALS", "OAuth client credentials are required")
	}
	return &BankIntegration{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		BankCode:            bankCode,
		ClientID:            clientID,
		ClientSecret:        clientSecret,
		Sandbox:             sandbox,
		Status:              IntegrationStatusPending,
	}, nil
}

// HasToken returns true if the integration has ever completed OAuth
func (i *BankIntegration) HasToken() bool {
	return i.AccessToken != ""
}

// TokenNeedsRefresh returns true when the access token expires within the
// proactive refresh window. A missing expiry means the token never expires
// as far as we know, so no refresh is triggered.
func (i *BankIntegration) TokenNeedsRefresh(now time.Time) bool {
	if i.TokenExpiresAt == nil {
		return false
	}
	return now.Add(tokenRefreshWindow).After(*i.TokenExpiresAt)
}

// ApplyTokens stores a freshly issued token pair and activates the
// integration. An empty refresh token keeps the previous one, since some
// banks only rotate it occasionally.
func (i *BankIntegration) ApplyTokens(accessToken, refreshToken string, expiresIn int64, now time.Time) {
	i.AccessToken = accessToken
	if refreshToken != "" {
		i.RefreshToken = refreshToken
	}
	if expiresIn > 0 {
		exp := now.Add(time.Duration(expiresIn) * time.Second)
		i.TokenExpiresAt = &exp
	} else {
		i.TokenExpiresAt = nil
	}
	i.Status = IntegrationStatusActive
	i.LastError = ""
	i.Touch()
	i.IncrementVersion()
}

// BeginOAuth stores a fresh CSRF state ahead of the authorize redirect
func (i *BankIntegration) BeginOAuth(state string) {
	i.OAuthState = state
	i.Touch()
	i.IncrementVersion()
}

// ValidateOAuthState compares the returned state against the persisted one
func (i *BankIntegration) ValidateOAuthState(state string) error {
	if i.OAuthState == "" || state != i.OAuthState {
		return ErrOAuthStateMismatch
	}
	return nil
}

// ClearOAuthState drops the persisted CSRF state after a completed exchange
func (i *BankIntegration) ClearOAuthState() {
	i.OAuthState = ""
}

// MarkTokenExpired records a rejected refresh. Terminal until a human
// re-authorizes the integration.
func (i *BankIntegration) MarkTokenExpired(reason string) {
	i.Status = IntegrationStatusTokenExpired
	i.LastError = reason
	i.Touch()
	i.IncrementVersion()
}

// MarkSynced records a successful sync run
func (i *BankIntegration) MarkSynced(at time.Time) {
	i.LastSyncAt = &at
	i.LastError = ""
	i.Touch()
	i.IncrementVersion()
}

// RecordError stores the last failure without changing lifecycle status
func (i *BankIntegration) RecordError(message string) {
	i.LastError = message
	i.Touch()
	i.IncrementVersion()
}

// Reconnect replaces the OAuth client credentials and resets the
// integration to PENDING so the authorize dance can run again
func (i *BankIntegration) Reconnect(clientID, clientSecret string, sandbox bool) {
	i.ClientID = clientID
	i.ClientSecret = clientSecret
	i.Sandbox = sandbox
	i.AccessToken = ""
	i.RefreshToken = ""
	i.TokenExpiresAt = nil
	i.OAuthState = ""
	i.Status = IntegrationStatusPending
	i.LastError = ""
	i.Touch()
	i.IncrementVersion()
}

// Disconnect clears tokens and marks the integration disconnected.
// The row is kept because accounts may still reference it.
func (i *BankIntegration) Disconnect() {
	i.AccessToken = ""
	i.RefreshToken = ""
	i.TokenExpiresAt = nil
	i.OAuthState = ""
	i.Status = IntegrationStatusDisconnected
	i.Touch()
	i.IncrementVersion()
}
