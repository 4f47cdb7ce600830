package banking

import (
	"time"

	"github.com/bankbridge/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BankAccount caches one external account of a bank integration.
// The balance is a read-through cache and never authoritative; the bank
// always supersedes it.
type BankAccount struct {
	shared.TenantAggregateRoot
	IntegrationID    uuid.UUID       `json:"integration_id"`
	AccountNumber    string          `json:"account_number"`
	Name             string          `json:"name"`
	Currency         string          `json:"currency"`
	Balance          decimal.Decimal `json:"balance"`
	BalanceUpdatedAt *time.Time      `json:"balance_updated_at,omitempty"`
}

// NewBankAccount creates a bank account linked to an integration
func NewBankAccount(tenantID, integrationID uuid.UUID, accountNumber, name, currency string) (*BankAccount, error) {
	if integrationID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INTEGRATION", "Integration ID cannot be empty")
	}
	if accountNumber == "" {
		return nil, shared.NewDomainError("INVALID_ACCOUNT_NUMBER", "Account number cannot be empty")
	}
	if currency == "" {
		currency = "RUB"
	}
	return &BankAccount{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		IntegrationID:       integrationID,
		AccountNumber:       accountNumber,
		Name:                name,
		Currency:            currency,
		Balance:             decimal.Zero,
	}, nil
}

// UpdateBalance overwrites the cached balance with a value observed from
// the bank at the given moment
func (a *BankAccount) UpdateBalance(balance decimal.Decimal, observedAt time.Time) {
	a.Balance = balance
	a.BalanceUpdatedAt = &observedAt
	a.Touch()
	a.IncrementVersion()
}
