package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appbanking "github.com/bankbridge/backend/internal/application/banking"
	"github.com/bankbridge/backend/internal/interfaces/http/middleware"
)

// BankTransactionHandler handles statement transaction API endpoints
type BankTransactionHandler struct {
	BaseHandler
	categorization *appbanking.CategorizationService
}

// NewBankTransactionHandler creates a new BankTransactionHandler
func NewBankTransactionHandler(categorization *appbanking.CategorizationService) *BankTransactionHandler {
	return &BankTransactionHandler{
		categorization: categorization,
	}
}

// CategorizeRequest narrows the categorization run to one account.
// An empty body runs over all NEW transactions of the tenant.
type CategorizeRequest struct {
	AccountID string `json:"account_id" binding:"omitempty,uuid"`
}

// ApplyCategoryRequest represents a manual category override
type ApplyCategoryRequest struct {
	CategoryCode string `json:"category_code" binding:"required,max=50"`
}

// Categorize runs keyword categorization over NEW transactions
func (h *BankTransactionHandler) Categorize(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	var req CategorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		middleware.HandleValidationError(c, err)
		return
	}

	var accountID *uuid.UUID
	if req.AccountID != "" {
		id, err := uuid.Parse(req.AccountID)
		if err != nil {
			h.BadRequest(c, "Invalid account ID")
			return
		}
		accountID = &id
	}

	result, err := h.categorization.CategorizeNew(c.Request.Context(), tenantID, accountID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// ApplyCategory sets a category on one transaction by hand and marks it
// processed
func (h *BankTransactionHandler) ApplyCategory(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transaction ID")
		return
	}

	var req ApplyCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.categorization.ApplyCategory(c.Request.Context(), tenantID, transactionID, req.CategoryCode)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// RegisterRoutes registers transaction endpoints on the given group
func (h *BankTransactionHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/transactions/categorize", h.Categorize)
	g.POST("/transactions/:id/category", h.ApplyCategory)
}
