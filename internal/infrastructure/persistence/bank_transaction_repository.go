package persistence

import (
	"context"
	"errors"

	"github.com/bankbridge/backend/internal/domain/banking"
	"github.com/bankbridge/backend/internal/domain/shared"
	"github.com/bankbridge/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormBankTransactionRepository implements BankTransactionRepository using GORM
type GormBankTransactionRepository struct {
	db *gorm.DB
}

// NewGormBankTransactionRepository creates a new GormBankTransactionRepository
func NewGormBankTransactionRepository(db *gorm.DB) *GormBankTransactionRepository {
	return &GormBankTransactionRepository{db: db}
}

// FindByIDForTenant finds a transaction by ID for a tenant
func (r *GormBankTransactionRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*banking.BankTransaction, error) {
	var model models.BankTransactionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByExternalID finds a transaction by the bank-assigned operation id.
// This lookup backs the idempotent statement upsert.
func (r *GormBankTransactionRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (*banking.BankTransaction, error) {
	var model models.BankTransactionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND external_id = ?", tenantID, externalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindNewUncategorized lists up to limit transactions in NEW status without
// a category, optionally restricted to one account, oldest first
func (r *GormBankTransactionRepository) FindNewUncategorized(ctx context.Context, tenantID uuid.UUID, accountID *uuid.UUID, limit int) ([]banking.BankTransaction, error) {
	var txModels []models.BankTransactionModel

	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND processing_status = ? AND category_code IS NULL",
			tenantID, banking.ProcessingStatusNew)
	if accountID != nil {
		query = query.Where("account_id = ?", *accountID)
	}

	if err := query.
		Order("operation_at ASC").
		Limit(limit).
		Find(&txModels).Error; err != nil {
		return nil, err
	}

	txs := make([]banking.BankTransaction, len(txModels))
	for i, model := range txModels {
		txs[i] = *model.ToDomain()
	}
	return txs, nil
}

// FindTenantsWithUncategorized lists distinct tenants that still have NEW
// uncategorized transactions. Backs the background categorization sweep.
func (r *GormBankTransactionRepository) FindTenantsWithUncategorized(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var tenantIDs []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.BankTransactionModel{}).
		Where("processing_status = ? AND category_code IS NULL", banking.ProcessingStatusNew).
		Distinct("tenant_id").
		Limit(limit).
		Pluck("tenant_id", &tenantIDs).Error; err != nil {
		return nil, err
	}
	return tenantIDs, nil
}

// FindRecentByCounterpartyINN lists the most recent limit transactions of
// the given direction for a counterparty INN that are processed and
// categorized. Backs the history-based categorization strategy.
func (r *GormBankTransactionRepository) FindRecentByCounterpartyINN(ctx context.Context, tenantID uuid.UUID, inn string, operationType banking.OperationType, limit int) ([]banking.BankTransaction, error) {
	var txModels []models.BankTransactionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND counterparty_inn = ? AND operation_type = ? AND processing_status = ? AND category_code IS NOT NULL",
			tenantID, inn, operationType, banking.ProcessingStatusProcessed).
		Order("operation_at DESC").
		Limit(limit).
		Find(&txModels).Error; err != nil {
		return nil, err
	}
	txs := make([]banking.BankTransaction, len(txModels))
	for i, model := range txModels {
		txs[i] = *model.ToDomain()
	}
	return txs, nil
}

// Save creates or updates a transaction
func (r *GormBankTransactionRepository) Save(ctx context.Context, tx *banking.BankTransaction) error {
	model := models.BankTransactionModelFromDomain(tx)
	return r.db.WithContext(ctx).Save(model).Error
}

// Ensure GormBankTransactionRepository implements BankTransactionRepository
var _ banking.BankTransactionRepository = (*GormBankTransactionRepository)(nil)
