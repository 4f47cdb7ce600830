package banking

import (
	"context"

	"github.com/google/uuid"
)

// BankIntegrationRepository defines persistence for bank integrations
type BankIntegrationRepository interface {
	// FindByIDForTenant finds an integration by ID for a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*BankIntegration, error)

	// FindByBankCode finds the tenant's integration for a bank
	FindByBankCode(ctx context.Context, tenantID uuid.UUID, code BankCode) (*BankIntegration, error)

	// FindByOAuthState finds the integration holding a pending OAuth state.
	// Used by the callback, which carries no tenant context of its own.
	FindByOAuthState(ctx context.Context, state string) (*BankIntegration, error)

	// Save creates or updates an integration
	Save(ctx context.Context, integration *BankIntegration) error
}

// BankAccountRepository defines persistence for bank accounts
type BankAccountRepository interface {
	// FindByIDForTenant finds an account by ID for a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*BankAccount, error)

	// FindByIntegration lists all accounts of one integration
	FindByIntegration(ctx context.Context, tenantID, integrationID uuid.UUID) ([]BankAccount, error)

	// CountByIntegration counts accounts referencing an integration
	CountByIntegration(ctx context.Context, tenantID, integrationID uuid.UUID) (int64, error)

	// Save creates or updates an account
	Save(ctx context.Context, account *BankAccount) error
}

// BankTransactionRepository defines persistence for ingested transactions
type BankTransactionRepository interface {
	// FindByIDForTenant finds a transaction by ID for a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*BankTransaction, error)

	// FindByExternalID finds a transaction by the bank-assigned operation
	// id. This lookup backs the idempotent upsert.
	FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (*BankTransaction, error)

	// FindNewUncategorized lists up to limit transactions in NEW status
	// without a category, optionally restricted to one account, oldest first
	FindNewUncategorized(ctx context.Context, tenantID uuid.UUID, accountID *uuid.UUID, limit int) ([]BankTransaction, error)

	// FindTenantsWithUncategorized lists distinct tenants that still have
	// NEW uncategorized transactions. Backs the background sweep.
	FindTenantsWithUncategorized(ctx context.Context, limit int) ([]uuid.UUID, error)

	// FindRecentByCounterpartyINN lists the most recent limit transactions
	// of the given direction for a counterparty INN that are PROCESSED and
	// categorized. Backs the history categorization strategy.
	FindRecentByCounterpartyINN(ctx context.Context, tenantID uuid.UUID, inn string, operationType OperationType, limit int) ([]BankTransaction, error)

	// Save creates or updates a transaction
	Save(ctx context.Context, tx *BankTransaction) error
}

// PaymentOrderRepository defines persistence for payment orders
type PaymentOrderRepository interface {
	// FindByIDForTenant finds a payment order by ID for a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*PaymentOrder, error)

	// FindInFlight lists up to limit orders across all tenants that are in
	// an in-flight status (sent/accepted/processing) with a known external
	// id, oldest first. Backs the status-sync sweep.
	FindInFlight(ctx context.Context, limit int) ([]PaymentOrder, error)

	// Save creates or updates a payment order
	Save(ctx context.Context, order *PaymentOrder) error
}

// BankSyncLogRepository defines persistence for sync audit records
type BankSyncLogRepository interface {
	// FindByIntegration lists sync logs for an integration, newest first
	FindByIntegration(ctx context.Context, tenantID, integrationID uuid.UUID, limit int) ([]BankSyncLog, error)

	// Save creates or updates a sync log row
	Save(ctx context.Context, log *BankSyncLog) error
}
