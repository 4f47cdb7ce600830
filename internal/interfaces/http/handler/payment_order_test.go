package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appbanking "github.com/bankbridge/backend/internal/application/banking"
	"github.com/bankbridge/backend/internal/domain/banking"
	"github.com/bankbridge/backend/internal/domain/shared"
	"github.com/bankbridge/backend/internal/interfaces/http/dto"
)

// MockOrderRepository implements banking.PaymentOrderRepository for
// handler tests
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*banking.PaymentOrder, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*banking.PaymentOrder), args.Error(1)
}

func (m *MockOrderRepository) FindInFlight(ctx context.Context, limit int) ([]banking.PaymentOrder, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]banking.PaymentOrder), args.Error(1)
}

func (m *MockOrderRepository) Save(ctx context.Context, order *banking.PaymentOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

// MockAccountRepository implements banking.BankAccountRepository for
// handler tests
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*banking.BankAccount, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*banking.BankAccount), args.Error(1)
}

func (m *MockAccountRepository) FindByIntegration(ctx context.Context, tenantID, integrationID uuid.UUID) ([]banking.BankAccount, error) {
	args := m.Called(ctx, tenantID, integrationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]banking.BankAccount), args.Error(1)
}

func (m *MockAccountRepository) CountByIntegration(ctx context.Context, tenantID, integrationID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, integrationID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepository) Save(ctx context.Context, account *banking.BankAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func newOrderHandler(orders *MockOrderRepository, accounts *MockAccountRepository) *PaymentOrderHandler {
	svc := appbanking.NewPaymentOrderService(orders, accounts, nil, nil, nil, nil, zap.NewNop())
	return NewPaymentOrderHandler(svc)
}

func createOrderBody(accountID uuid.UUID) map[string]any {
	return map[string]any{
		"account_id":      accountID.String(),
		"document_number": "PP-2026-0042",
		"document_date":   "2026-08-27",
		"amount":          "15000.50",
		"purpose":         "Оплата по счету 42 от 27.08.2026",
		"recipient": map[string]any{
			"name":           "ООО Ромашка",
			"inn":            "7707083893",
			"account_number": "40702810900000005555",
			"bank_bik":       "044525225",
		},
	}
}

func postJSON(t *testing.T, c *gin.Context, body any) {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	c.Request, err = http.NewRequest(http.MethodPost, "/", bytes.NewReader(buf))
	require.NoError(t, err)
	c.Request.Header.Set("Content-Type", "application/json")
}

func TestPaymentOrderHandler_Create(t *testing.T) {
	tenantID := uuid.New()
	accountID := uuid.New()

	t.Run("creates draft order", func(t *testing.T) {
		orders := new(MockOrderRepository)
		accounts := new(MockAccountRepository)
		accounts.On("FindByIDForTenant", mock.Anything, tenantID, accountID).
			Return(&banking.BankAccount{}, nil)
		orders.On("Save", mock.Anything, mock.Anything).Return(nil)

		h := newOrderHandler(orders, accounts)
		c, w := newTestContext(t, http.MethodPost, "/bank/payment-orders")
		postJSON(t, c, createOrderBody(accountID))
		setJWTContext(c, tenantID)

		h.Create(c)

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)

		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "PP-2026-0042", data["document_number"])
		assert.Equal(t, string(banking.PaymentOrderStatusDraft), data["status"])
	})

	t.Run("unknown payer account returns 404", func(t *testing.T) {
		orders := new(MockOrderRepository)
		accounts := new(MockAccountRepository)
		accounts.On("FindByIDForTenant", mock.Anything, tenantID, accountID).
			Return(nil, shared.ErrNotFound)

		h := newOrderHandler(orders, accounts)
		c, w := newTestContext(t, http.MethodPost, "/bank/payment-orders")
		postJSON(t, c, createOrderBody(accountID))
		setJWTContext(c, tenantID)

		h.Create(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing fields return validation details", func(t *testing.T) {
		h := newOrderHandler(new(MockOrderRepository), new(MockAccountRepository))
		c, w := newTestContext(t, http.MethodPost, "/bank/payment-orders")
		postJSON(t, c, map[string]any{"purpose": "нет реквизитов"})
		setJWTContext(c, tenantID)

		h.Create(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "account_id")
	})

	t.Run("invalid amount returns 400", func(t *testing.T) {
		body := createOrderBody(accountID)
		body["amount"] = "15,000.50"

		h := newOrderHandler(new(MockOrderRepository), new(MockAccountRepository))
		c, w := newTestContext(t, http.MethodPost, "/bank/payment-orders")
		postJSON(t, c, body)
		setJWTContext(c, tenantID)

		h.Create(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPaymentOrderHandler_Cancel_InvalidState(t *testing.T) {
	tenantID := uuid.New()

	order, err := banking.NewPaymentOrder(tenantID, uuid.New(), "PP-1", time.Now(), banking.PaymentRecipient{
		Name:          "ООО Ромашка",
		INN:           "7707083893",
		AccountNumber: "40702810900000005555",
		BankBIK:       "044525225",
	}, decimal.RequireFromString("100"), "Оплата")
	require.NoError(t, err)
	order.MarkSent("ext-1", time.Now())
	require.NoError(t, order.ApplyBankStatus(banking.PaymentOrderStatusExecuted, time.Now(), ""))

	orders := new(MockOrderRepository)
	orders.On("FindByIDForTenant", mock.Anything, tenantID, order.GetID()).Return(order, nil)

	h := newOrderHandler(orders, new(MockAccountRepository))
	c, w := newTestContext(t, http.MethodPost, "/bank/payment-orders/"+order.GetID().String()+"/cancel")
	setJWTContext(c, tenantID)
	c.Params = gin.Params{{Key: "id", Value: order.GetID().String()}}

	h.Cancel(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeInvalidState)
}
