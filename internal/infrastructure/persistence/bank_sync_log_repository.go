package persistence

import (
	"context"

	"github.com/bankbridge/backend/internal/domain/banking"
	"github.com/bankbridge/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormBankSyncLogRepository implements BankSyncLogRepository using GORM
type GormBankSyncLogRepository struct {
	db *gorm.DB
}

// NewGormBankSyncLogRepository creates a new GormBankSyncLogRepository
func NewGormBankSyncLogRepository(db *gorm.DB) *GormBankSyncLogRepository {
	return &GormBankSyncLogRepository{db: db}
}

// FindByIntegration lists sync logs for an integration, newest first
func (r *GormBankSyncLogRepository) FindByIntegration(ctx context.Context, tenantID, integrationID uuid.UUID, limit int) ([]banking.BankSyncLog, error) {
	var logModels []models.BankSyncLogModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND integration_id = ?", tenantID, integrationID).
		Order("started_at DESC").
		Limit(limit).
		Find(&logModels).Error; err != nil {
		return nil, err
	}
	logs := make([]banking.BankSyncLog, len(logModels))
	for i, model := range logModels {
		logs[i] = *model.ToDomain()
	}
	return logs, nil
}

// Save creates or updates a sync log row
func (r *GormBankSyncLogRepository) Save(ctx context.Context, log *banking.BankSyncLog) error {
	model := models.BankSyncLogModelFromDomain(log)
	return r.db.WithContext(ctx).Save(model).Error
}

// Ensure GormBankSyncLogRepository implements BankSyncLogRepository
var _ banking.BankSyncLogRepository = (*GormBankSyncLogRepository)(nil)
