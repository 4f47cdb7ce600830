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

// GormBankAccountRepository implements BankAccountRepository using GORM
type GormBankAccountRepository struct {
	db *gorm.DB
}

// NewGormBankAccountRepository creates a new GormBankAccountRepository
func NewGormBankAccountRepository(db *gorm.DB) *GormBankAccountRepository {
	return &GormBankAccountRepository{db: db}
}

// FindByIDForTenant finds an account by ID for a tenant
func (r *GormBankAccountRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*banking.BankAccount, error) {
	var model models.BankAccountModel
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

// FindByIntegration lists all accounts of one integration
func (r *GormBankAccountRepository) FindByIntegration(ctx context.Context, tenantID, integrationID uuid.UUID) ([]banking.BankAccount, error) {
	var accountModels []models.BankAccountModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND integration_id = ?", tenantID, integrationID).
		Order("account_number ASC").
		Find(&accountModels).Error; err != nil {
		return nil, err
	}
	accounts := make([]banking.BankAccount, len(accountModels))
	for i, model := range accountModels {
		accounts[i] = *model.ToDomain()
	}
	return accounts, nil
}

// CountByIntegration counts accounts referencing an integration
func (r *GormBankAccountRepository) CountByIntegration(ctx context.Context, tenantID, integrationID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.BankAccountModel{}).
		Where("tenant_id = ? AND integration_id = ?", tenantID, integrationID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates an account
func (r *GormBankAccountRepository) Save(ctx context.Context, account *banking.BankAccount) error {
	model := models.BankAccountModelFromDomain(account)
	return r.db.WithContext(ctx).Save(model).Error
}

// Ensure GormBankAccountRepository implements BankAccountRepository
var _ banking.BankAccountRepository = (*GormBankAccountRepository)(nil)
