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

// GormBankIntegrationRepository implements BankIntegrationRepository using GORM
type GormBankIntegrationRepository struct {
	db *gorm.DB
}

// NewGormBankIntegrationRepository creates a new GormBankIntegrationRepository
func NewGormBankIntegrationRepository(db *gorm.DB) *GormBankIntegrationRepository {
	return &GormBankIntegrationRepository{db: db}
}

// FindByIDForTenant finds an integration by ID for a tenant
func (r *GormBankIntegrationRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*banking.BankIntegration, error) {
	var model models.BankIntegrationModel
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

// FindByBankCode finds the tenant's integration for a bank
func (r *GormBankIntegrationRepository) FindByBankCode(ctx context.Context, tenantID uuid.UUID, code banking.BankCode) (*banking.BankIntegration, error) {
	var model models.BankIntegrationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND bank_code = ?", tenantID, code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOAuthState finds the integration holding a pending OAuth state.
// The lookup is deliberately not tenant-scoped: the bank's redirect carries
// no tenant context, the state itself is the credential.
func (r *GormBankIntegrationRepository) FindByOAuthState(ctx context.Context, state string) (*banking.BankIntegration, error) {
	var model models.BankIntegrationModel
	if err := r.db.WithContext(ctx).
		Where("oauth_state = ?", state).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates an integration
func (r *GormBankIntegrationRepository) Save(ctx context.Context, integration *banking.BankIntegration) error {
	model := models.BankIntegrationModelFromDomain(integration)
	return r.db.WithContext(ctx).Save(model).Error
}

// Ensure GormBankIntegrationRepository implements BankIntegrationRepository
var _ banking.BankIntegrationRepository = (*GormBankIntegrationRepository)(nil)
