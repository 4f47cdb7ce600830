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

// inFlightStatuses are the payment order statuses the status sweep polls
var inFlightStatuses = []banking.PaymentOrderStatus{
	banking.PaymentOrderStatusSent,
	banking.PaymentOrderStatusAccepted,
	banking.PaymentOrderStatusProcessing,
}

// GormPaymentOrderRepository implements PaymentOrderRepository using GORM
type GormPaymentOrderRepository struct {
	db *gorm.DB
}

// NewGormPaymentOrderRepository creates a new GormPaymentOrderRepository
func NewGormPaymentOrderRepository(db *gorm.DB) *GormPaymentOrderRepository {
	return &GormPaymentOrderRepository{db: db}
}

// FindByIDForTenant finds a payment order by ID for a tenant
func (r *GormPaymentOrderRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*banking.PaymentOrder, error) {
	var model models.PaymentOrderModel
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

// FindInFlight lists up to limit orders across all tenants that are in an
// in-flight status with a known external id, oldest sent first. The sweep
// runs outside any tenant context, so this is one of the few deliberately
// tenant-unscoped queries.
func (r *GormPaymentOrderRepository) FindInFlight(ctx context.Context, limit int) ([]banking.PaymentOrder, error) {
	var orderModels []models.PaymentOrderModel
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND external_id IS NOT NULL", inFlightStatuses).
		Order("sent_at ASC").
		Limit(limit).
		Find(&orderModels).Error; err != nil {
		return nil, err
	}
	orders := make([]banking.PaymentOrder, len(orderModels))
	for i, model := range orderModels {
		orders[i] = *model.ToDomain()
	}
	return orders, nil
}

// Save creates or updates a payment order
func (r *GormPaymentOrderRepository) Save(ctx context.Context, order *banking.PaymentOrder) error {
	model := models.PaymentOrderModelFromDomain(order)
	return r.db.WithContext(ctx).Save(model).Error
}

// Ensure GormPaymentOrderRepository implements PaymentOrderRepository
var _ banking.PaymentOrderRepository = (*GormPaymentOrderRepository)(nil)
