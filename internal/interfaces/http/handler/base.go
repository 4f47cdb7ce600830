package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bankbridge/backend/internal/domain/banking"
	"github.com/bankbridge/backend/internal/domain/shared"
	"github.com/bankbridge/backend/internal/interfaces/http/dto"
	"github.com/bankbridge/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader("X-Request-ID")
}

// getTenantID extracts tenant ID from JWT claims or returns error
func getTenantID(c *gin.Context) (uuid.UUID, error) {
	tenantIDStr := middleware.GetJWTTenantID(c)
	if tenantIDStr == "" {
		// Fallback to header for development
		tenantIDStr = c.GetHeader("X-Tenant-ID")
	}
	if tenantIDStr == "" {
		return uuid.Nil, errors.New("tenant ID not found in context")
	}
	return uuid.Parse(tenantIDStr)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleDomainError converts domain and bank connectivity errors to HTTP
// responses. Bank sentinel errors are checked before the generic domain
// error type because services wrap them with context.
func (h *BaseHandler) HandleDomainError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, banking.ErrOAuthStateMismatch):
		h.Error(c, http.StatusBadRequest, dto.ErrCodeOAuthState, "OAuth state is unknown or expired")
		return
	case errors.Is(err, banking.ErrTokenRefreshFailed), errors.Is(err, banking.ErrNoToken):
		h.Error(c, http.StatusBadGateway, dto.ErrCodeTokenRefreshFailed, "Failed to obtain a valid bank access token")
		return
	case errors.Is(err, banking.ErrBankUnavailable), errors.Is(err, banking.ErrBankInvalidResponse):
		h.Error(c, http.StatusBadGateway, dto.ErrCodeBankUnavailable, "Bank API is unavailable")
		return
	case errors.Is(err, banking.ErrBankRequestFailed), errors.Is(err, banking.ErrBankAuthFailed):
		h.Error(c, http.StatusBadGateway, dto.ErrCodeBankRejected, "Bank API rejected the request")
		return
	case errors.Is(err, banking.ErrBankNotConfigured):
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "Unsupported bank code")
		return
	case errors.Is(err, banking.ErrPaymentsNotSupported):
		h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeBusinessRule, "Connected bank does not support payment orders")
		return
	case errors.Is(err, banking.ErrPaymentNotSent):
		h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState, "Payment order has not been sent to the bank")
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.Error(c, dto.GetHTTPStatus(code), code, domainErr.Message)
		return
	}

	h.InternalError(c, "An unexpected error occurred")
}
