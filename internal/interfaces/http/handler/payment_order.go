package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	appbanking "github.com/bankbridge/backend/internal/application/banking"
	"github.com/bankbridge/backend/internal/domain/banking"
	"github.com/bankbridge/backend/internal/interfaces/http/middleware"
)

// PaymentOrderHandler handles payment order API endpoints
type PaymentOrderHandler struct {
	BaseHandler
	orders *appbanking.PaymentOrderService
}

// NewPaymentOrderHandler creates a new PaymentOrderHandler
func NewPaymentOrderHandler(orders *appbanking.PaymentOrderService) *PaymentOrderHandler {
	return &PaymentOrderHandler{
		orders: orders,
	}
}

// PaymentRecipientRequest identifies the receiving party of a payment
type PaymentRecipientRequest struct {
	Name            string `json:"name" binding:"required,max=160"`
	INN             string `json:"inn" binding:"required,numeric"`
	KPP             string `json:"kpp" binding:"omitempty,numeric,len=9"`
	AccountNumber   string `json:"account_number" binding:"required,numeric,len=20"`
	BankBIK         string `json:"bank_bik" binding:"required,numeric,len=9"`
	BankName        string `json:"bank_name"`
	BankCorrAccount string `json:"bank_corr_account" binding:"omitempty,numeric,len=20"`
}

// CreatePaymentOrderRequest represents a request to create a draft
// payment order. Amount is a decimal string to avoid float rounding.
type CreatePaymentOrderRequest struct {
	AccountID      string                  `json:"account_id" binding:"required,uuid"`
	DocumentNumber string                  `json:"document_number" binding:"required,max=50"`
	DocumentDate   string                  `json:"document_date" binding:"required,datetime=2006-01-02"`
	Recipient      PaymentRecipientRequest `json:"recipient" binding:"required"`
	Amount         string                  `json:"amount" binding:"required"`
	Purpose        string                  `json:"purpose" binding:"required,max=210"`
}

// Create creates a draft payment order
func (h *PaymentOrderHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	var req CreatePaymentOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		h.BadRequest(c, "Invalid account ID")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.BadRequest(c, "Invalid amount")
		return
	}

	documentDate, _ := time.Parse("2006-01-02", req.DocumentDate)

	recipient := banking.PaymentRecipient{
		Name:            req.Recipient.Name,
		INN:             req.Recipient.INN,
		KPP:             req.Recipient.KPP,
		AccountNumber:   req.Recipient.AccountNumber,
		BankBIK:         req.Recipient.BankBIK,
		BankName:        req.Recipient.BankName,
		BankCorrAccount: req.Recipient.BankCorrAccount,
	}

	result, err := h.orders.CreateOrder(c.Request.Context(), tenantID, accountID, req.DocumentNumber, documentDate, recipient, amount, req.Purpose)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, result)
}

// Send submits a payment order to the bank
func (h *PaymentOrderHandler) Send(c *gin.Context) {
	h.withOrder(c, h.orders.Send)
}

// CheckStatus polls the bank for the current execution status
func (h *PaymentOrderHandler) CheckStatus(c *gin.Context) {
	h.withOrder(c, h.orders.CheckStatus)
}

// Cancel cancels an order that has not reached the bank
func (h *PaymentOrderHandler) Cancel(c *gin.Context) {
	h.withOrder(c, h.orders.Cancel)
}

// withOrder runs an order action keyed by tenant and the :id path param
func (h *PaymentOrderHandler) withOrder(c *gin.Context, action func(ctx context.Context, tenantID, orderID uuid.UUID) (*appbanking.PaymentOrderResult, error)) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment order ID")
		return
	}

	result, err := action(c.Request.Context(), tenantID, orderID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// RegisterRoutes registers payment order endpoints on the given group
func (h *PaymentOrderHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/payment-orders", h.Create)
	g.POST("/payment-orders/:id/send", h.Send)
	g.POST("/payment-orders/:id/check-status", h.CheckStatus)
	g.POST("/payment-orders/:id/cancel", h.Cancel)
}
