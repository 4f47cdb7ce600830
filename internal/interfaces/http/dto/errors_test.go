package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeUnknown, http.StatusInternalServerError},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeAlreadyExists, http.StatusConflict},
		{ErrCodeConcurrencyConflict, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeBusinessRule, http.StatusUnprocessableEntity},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeBankUnavailable, http.StatusBadGateway},
		{ErrCodeBankRejected, http.StatusBadGateway},
		{ErrCodeOAuthState, http.StatusBadRequest},
		{ErrCodeTokenRefreshFailed, http.StatusBadGateway},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"NOT_FOUND", ErrCodeNotFound},
		{"ALREADY_EXISTS", ErrCodeAlreadyExists},
		{"INTEGRATION_EXISTS", ErrCodeAlreadyExists},
		{"INVALID_BANK_CODE", ErrCodeInvalidInput},
		{"INVALID_RECIPIENT", ErrCodeInvalidInput},
		{"INVALID_STATE", ErrCodeInvalidState},
		{"ACCOUNT_MISMATCH", ErrCodeBusinessRule},
		{"CONCURRENCY_CONFLICT", ErrCodeConcurrencyConflict},
		// Already normalized or unknown codes pass through
		{ErrCodeNotFound, ErrCodeNotFound},
		{"SOMETHING_ELSE", "SOMETHING_ELSE"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.input))
		})
	}
}

func TestErrorResponseSerialization(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "Integration not found", "req-123")

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, false, decoded["success"])
	errObj := decoded["error"].(map[string]interface{})
	assert.Equal(t, "ERR_NOT_FOUND", errObj["code"])
	assert.Equal(t, "req-123", errObj["request_id"])
	// Empty details must be omitted
	_, hasDetails := errObj["details"]
	assert.False(t, hasDetails)
}
