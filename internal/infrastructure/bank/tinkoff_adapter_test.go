package bank

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankbridge/backend/internal/domain/banking"
)

func newTestAdapter(t *testing.T, handler http.Handler) (*TinkoffAdapter, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter, err := NewTinkoffAdapter(&TinkoffConfig{
		AuthorizeURL:      server.URL + "/auth/authorize",
		TokenURL:          server.URL + "/auth/token",
		Scope:             "opensme/inplat",
		APIBaseURL:        server.URL + "/api",
		SandboxAPIBaseURL: server.URL + "/sandbox",
	})
	require.NoError(t, err)
	return adapter, server
}

func testOAuthRequest() banking.OAuthRequest {
	return banking.OAuthRequest{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RedirectURI:  "https://app.example.com/callback",
	}
}

func TestTinkoffAdapter_AuthorizeURL(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.NotFoundHandler())

	raw := adapter.AuthorizeURL(testOAuthRequest(), "state-abc")

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/auth/authorize", parsed.Path)
	assert.Equal(t, "code", parsed.Query().Get("response_type"))
	assert.Equal(t, "client-1", parsed.Query().Get("client_id"))
	assert.Equal(t, "https://app.example.com/callback", parsed.Query().Get("redirect_uri"))
	assert.Equal(t, "opensme/inplat", parsed.Query().Get("scope"))
	assert.Equal(t, "state-abc", parsed.Query().Get("state"))
}

func TestTinkoffAdapter_ExchangeAuthCode(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "code-123", r.PostForm.Get("code"))
		assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret-1", r.PostForm.Get("client_secret"))
		assert.Equal(t, "https://app.example.com/callback", r.PostForm.Get("redirect_uri"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600}`))
	}))

	pair, err := adapter.ExchangeAuthCode(context.Background(), testOAuthRequest(), "code-123")
	require.NoError(t, err)
	assert.Equal(t, "at-1", pair.AccessToken)
	assert.Equal(t, "rt-1", pair.RefreshToken)
	assert.Equal(t, int64(3600), pair.ExpiresIn)
}

func TestTinkoffAdapter_RefreshToken(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-old", r.PostForm.Get("refresh_token"))
		_, _ = w.Write([]byte(`{"access_token":"at-2","refresh_token":"rt-new","expires_in":7200}`))
	}))

	pair, err := adapter.RefreshToken(context.Background(), testOAuthRequest(), "rt-old")
	require.NoError(t, err)
	assert.Equal(t, "at-2", pair.AccessToken)
	assert.Equal(t, "rt-new", pair.RefreshToken)
}

func TestTinkoffAdapter_RefreshToken_Rejected(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))

	_, err := adapter.RefreshToken(context.Background(), testOAuthRequest(), "rt-revoked")
	require.Error(t, err)
	assert.ErrorIs(t, err, banking.ErrBankAuthFailed)
}

func TestTinkoffAdapter_ListAccounts(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/bank-accounts", r.URL.Path)
		require.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[
			{"accountNumber":"40702810100000000001","name":"Основной счет","currency":"RUB","balance":{"otb":"150000.50"},"status":"OPEN"}
		]`))
	}))

	accounts, err := adapter.ListAccounts(context.Background(), "at-1", false)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "40702810100000000001", accounts[0].AccountNumber)
	assert.Equal(t, "Основной счет", accounts[0].Name)
	assert.True(t, accounts[0].Balance.Equal(decimal.RequireFromString("150000.50")))
}

func TestTinkoffAdapter_ListAccounts_SandboxBase(t *testing.T) {
	var gotPath string
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`[]`))
	}))

	_, err := adapter.ListAccounts(context.Background(), "at-1", true)
	require.NoError(t, err)
	assert.Equal(t, "/sandbox/bank-accounts", gotPath)
}

func TestTinkoffAdapter_FetchStatement(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/bank-statement", r.URL.Path)
		assert.Equal(t, "40702810100000000001", r.URL.Query().Get("accountNumber"))
		assert.Equal(t, "2025-01-01", r.URL.Query().Get("from"))
		assert.Equal(t, "2025-01-31", r.URL.Query().Get("to"))
		_, _ = w.Write([]byte(`{"operations":[
			{"id":"op-1","date":"2025-01-15T10:30:00Z","amount":"5000.00","currency":"RUB","operationType":"Credit",
			 "counterparty":{"name":"ООО Ромашка","inn":"7701234567"},"paymentPurpose":"Оплата по договору №7","balanceAfter":"155000.50"},
			{"id":"op-2","date":"2025-01-16","amount":"-1200.00","currency":"RUB","operationType":"Debit",
			 "counterparty":{"name":"АО Офис","inn":"7709876543"},"paymentPurpose":"Аренда офиса за январь"}
		]}`))
	}))

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	stmt, err := adapter.FetchStatement(context.Background(), "at-1", false, "40702810100000000001", from, to)
	require.NoError(t, err)
	require.Len(t, stmt.Operations, 2)

	credit := stmt.Operations[0]
	assert.Equal(t, "op-1", credit.ExternalID)
	assert.Equal(t, banking.OperationTypeCredit, credit.OperationType)
	assert.True(t, credit.Amount.Equal(decimal.RequireFromString("5000.00")))
	assert.Equal(t, "7701234567", credit.Counterparty.INN)
	require.NotNil(t, credit.BalanceAfter)
	assert.True(t, credit.BalanceAfter.Equal(decimal.RequireFromString("155000.50")))

	// Debit amounts normalize to non-negative; date-only values parse too
	debit := stmt.Operations[1]
	assert.Equal(t, banking.OperationTypeDebit, debit.OperationType)
	assert.True(t, debit.Amount.Equal(decimal.RequireFromString("1200.00")))
	assert.Equal(t, time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC), debit.Date)
	assert.Nil(t, debit.BalanceAfter)
}

func TestTinkoffAdapter_FetchStatement_UnknownOperationType(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"operations":[{"id":"op-1","date":"2025-01-15T10:30:00Z","amount":"1.00","operationType":"Transfer"}]}`))
	}))

	_, err := adapter.FetchStatement(context.Background(), "at-1", false, "acc", time.Now(), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, banking.ErrBankInvalidResponse)
}

func TestTinkoffAdapter_SubmitPayment(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/payments", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"paymentId":"pay-777"}`))
	}))

	id, err := adapter.SubmitPayment(context.Background(), "at-1", false, banking.PaymentRequest{
		DocumentNumber: "42",
		DocumentDate:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Amount:         decimal.RequireFromString("10000.00"),
		Purpose:        "Оплата поставки",
		PayerAccount:   "40702810100000000001",
		Recipient: banking.PaymentRecipient{
			Name:          "ООО Поставщик",
			INN:           "7701234567",
			AccountNumber: "40702810200000000002",
			BankBIK:       "044525225",
		},
		Priority: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "pay-777", id)
}

func TestTinkoffAdapter_SubmitPayment_BankError(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errorCode":"INSUFFICIENT_FUNDS","errorMessage":"Недостаточно средств"}`))
	}))

	_, err := adapter.SubmitPayment(context.Background(), "at-1", false, banking.PaymentRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, banking.ErrBankRequestFailed)
	assert.Contains(t, err.Error(), "INSUFFICIENT_FUNDS")
}

func TestTinkoffAdapter_GetPaymentStatus(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/payments/pay-777", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"EXECUTED"}`))
	}))

	status, err := adapter.GetPaymentStatus(context.Background(), "at-1", false, "pay-777")
	require.NoError(t, err)
	assert.Equal(t, "EXECUTED", status)
}

func TestTinkoffAdapter_CancelPayment(t *testing.T) {
	var gotMethod, gotPath string
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	err := adapter.CancelPayment(context.Background(), "at-1", false, "pay-777")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/payments/pay-777/cancel", gotPath)
}

func TestTinkoffAdapter_Unauthorized(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := adapter.ListAccounts(context.Background(), "expired", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, banking.ErrBankAuthFailed)
}

func TestProviderRegistry(t *testing.T) {
	registry, err := NewProviderRegistry(DefaultRegistry())
	require.NoError(t, err)

	provider, err := registry.Provider(banking.BankCodeTinkoff)
	require.NoError(t, err)
	assert.Equal(t, banking.BankCodeTinkoff, provider.BankCode())
	assert.True(t, provider.SupportsPayments())

	_, err = registry.Provider(banking.BankCodeSber)
	require.Error(t, err)
	assert.ErrorIs(t, err, banking.ErrBankNotConfigured)

	assert.Len(t, registry.Providers(), 1)
}
