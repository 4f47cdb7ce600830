package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appbanking "github.com/bankbridge/backend/internal/application/banking"
	"github.com/bankbridge/backend/internal/domain/banking"
	"github.com/bankbridge/backend/internal/interfaces/http/middleware"
)

// BankIntegrationHandler handles bank integration API endpoints
type BankIntegrationHandler struct {
	BaseHandler
	integrations *appbanking.IntegrationService
	sync         *appbanking.SyncService
}

// NewBankIntegrationHandler creates a new BankIntegrationHandler
func NewBankIntegrationHandler(integrations *appbanking.IntegrationService, sync *appbanking.SyncService) *BankIntegrationHandler {
	return &BankIntegrationHandler{
		integrations: integrations,
		sync:         sync,
	}
}

// ConnectBankRequest represents a request to register bank API credentials
type ConnectBankRequest struct {
	BankCode     string `json:"bank_code" binding:"required"`
	ClientID     string `json:"client_id" binding:"required"`
	ClientSecret string `json:"client_secret" binding:"required"`
	Sandbox      bool   `json:"sandbox"`
}

// SyncTransactionsRequest represents a request to pull a statement window
type SyncTransactionsRequest struct {
	AccountID string `json:"account_id" binding:"required,uuid"`
	From      string `json:"from" binding:"required,datetime=2006-01-02"`
	To        string `json:"to" binding:"required,datetime=2006-01-02"`
}

// Connect registers bank credentials for the tenant and creates a
// pending integration
func (h *BankIntegrationHandler) Connect(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	var req ConnectBankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.integrations.ConnectBank(c.Request.Context(), tenantID, banking.BankCode(req.BankCode), req.ClientID, req.ClientSecret, req.Sandbox)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, result)
}

// GetByID returns a single integration for the tenant
func (h *BankIntegrationHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	integrationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid integration ID")
		return
	}

	result, err := h.integrations.GetIntegration(c.Request.Context(), tenantID, integrationID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// OAuthURL generates a fresh authorization URL for the integration
func (h *BankIntegrationHandler) OAuthURL(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	integrationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid integration ID")
		return
	}

	result, err := h.integrations.GenerateOAuthURL(c.Request.Context(), tenantID, integrationID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// OAuthCallback completes the OAuth flow. The bank redirects here with
// state and code query parameters; the integration is resolved from the
// stored state, so this route carries no tenant context.
func (h *BankIntegrationHandler) OAuthCallback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		h.BadRequest(c, "Missing state or code parameter")
		return
	}

	result, err := h.integrations.ExchangeCode(c.Request.Context(), state, code)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	// Replayed exchanges return the stored outcome with the same shape
	h.Success(c, result)
}

// Disconnect revokes the integration and stops all syncing
func (h *BankIntegrationHandler) Disconnect(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	integrationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid integration ID")
		return
	}

	result, err := h.integrations.Disconnect(c.Request.Context(), tenantID, integrationID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// SyncAccounts refreshes the account list from the bank
func (h *BankIntegrationHandler) SyncAccounts(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	integrationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid integration ID")
		return
	}

	result, err := h.integrations.SyncAccounts(c.Request.Context(), tenantID, integrationID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// SyncTransactions pulls a statement window for one account
func (h *BankIntegrationHandler) SyncTransactions(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	integrationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid integration ID")
		return
	}

	var req SyncTransactionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		h.BadRequest(c, "Invalid account ID")
		return
	}

	from, _ := time.Parse("2006-01-02", req.From)
	to, _ := time.Parse("2006-01-02", req.To)
	if to.Before(from) {
		h.BadRequest(c, "Statement window end must not precede start")
		return
	}

	result, err := h.sync.SyncTransactions(c.Request.Context(), tenantID, integrationID, accountID, from, to)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// SyncBalances refreshes balances for all accounts of the integration
func (h *BankIntegrationHandler) SyncBalances(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	integrationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid integration ID")
		return
	}

	result, err := h.sync.SyncBalances(c.Request.Context(), tenantID, integrationID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// RegisterRoutes registers integration endpoints on the given group.
// The OAuth callback must also be listed in the JWT skip paths since
// the bank redirect carries no bearer token.
func (h *BankIntegrationHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/integrations", h.Connect)
	g.GET("/integrations/:id", h.GetByID)
	g.POST("/integrations/:id/oauth-url", h.OAuthURL)
	g.POST("/integrations/:id/disconnect", h.Disconnect)
	g.POST("/integrations/:id/sync-accounts", h.SyncAccounts)
	g.POST("/integrations/:id/sync", h.SyncTransactions)
	g.POST("/integrations/:id/sync-balances", h.SyncBalances)
	g.GET("/oauth/callback", h.OAuthCallback)
}
