package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bankbridge/backend/internal/domain/banking"
)

const (
	tinkoffDateLayout     = "2006-01-02"
	tinkoffDateTimeLayout = time.RFC3339
)

// TinkoffAdapter implements banking.BankProvider for the Tinkoff business
// API. The adapter is stateless: tokens are supplied per call and never
// stored here.
type TinkoffAdapter struct {
	config     *TinkoffConfig
	httpClient *http.Client
}

// NewTinkoffAdapter creates a new Tinkoff adapter
func NewTinkoffAdapter(config *TinkoffConfig) (*TinkoffAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &TinkoffAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// BankCode returns the bank code this adapter handles
func (a *TinkoffAdapter) BankCode() banking.BankCode {
	return banking.BankCodeTinkoff
}

// SupportsPayments reports that Tinkoff exposes a payment submission API
func (a *TinkoffAdapter) SupportsPayments() bool {
	return true
}

// AuthorizeURL builds the OAuth authorize redirect URL
func (a *TinkoffAdapter) AuthorizeURL(req banking.OAuthRequest, state string) string {
	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", req.ClientID)
	values.Set("redirect_uri", req.RedirectURI)
	values.Set("scope", a.config.Scope)
	values.Set("state", state)
	return a.config.AuthorizeURL + "?" + values.Encode()
}

// ExchangeAuthCode exchanges an authorization code for a token pair
func (a *TinkoffAdapter) ExchangeAuthCode(ctx context.Context, req banking.OAuthRequest, code string) (*banking.TokenPair, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", req.RedirectURI)
	return a.requestToken(ctx, req, form)
}

// RefreshToken exchanges a refresh token for a fresh token pair
func (a *TinkoffAdapter) RefreshToken(ctx context.Context, req banking.OAuthRequest, refreshToken string) (*banking.TokenPair, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return a.requestToken(ctx, req, form)
}

// requestToken performs a form-encoded call against the token endpoint
func (a *TinkoffAdapter) requestToken(ctx context.Context, oauth banking.OAuthRequest, form url.Values) (*banking.TokenPair, error) {
	form.Set("client_id", oauth.ClientID)
	form.Set("client_secret", oauth.ClientSecret)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("tinkoff: failed to create token request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", banking.ErrBankUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tinkoff: failed to read token response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", banking.ErrBankAuthFailed, resp.StatusCode, string(body))
	}

	var tokenResp tinkoffTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("%w: %v", banking.ErrBankInvalidResponse, err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", banking.ErrBankInvalidResponse)
	}

	return &banking.TokenPair{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresIn:    tokenResp.ExpiresIn,
	}, nil
}

// ListAccounts lists the accounts visible to the token
func (a *TinkoffAdapter) ListAccounts(ctx context.Context, token string, sandbox bool) ([]banking.ExternalAccount, error) {
	body, err := a.doRequest(ctx, http.MethodGet, a.baseURL(sandbox)+"/bank-accounts", token, nil)
	if err != nil {
		return nil, err
	}

	var accounts []tinkoffAccount
	if err := json.Unmarshal(body, &accounts); err != nil {
		return nil, fmt.Errorf("%w: %v", banking.ErrBankInvalidResponse, err)
	}

	result := make([]banking.ExternalAccount, 0, len(accounts))
	for _, acc := range accounts {
		result = append(result, banking.ExternalAccount{
			AccountNumber: acc.AccountNumber,
			Name:          acc.Name,
			Currency:      acc.Currency,
			Balance:       acc.Balance.Otb,
			Status:        acc.Status,
		})
	}
	return result, nil
}

// FetchStatement fetches the statement for an account and date window
func (a *TinkoffAdapter) FetchStatement(ctx context.Context, token string, sandbox bool, accountNumber string, from, to time.Time) (*banking.Statement, error) {
	values := url.Values{}
	values.Set("accountNumber", accountNumber)
	values.Set("from", from.Format(tinkoffDateLayout))
	values.Set("to", to.Format(tinkoffDateLayout))

	body, err := a.doRequest(ctx, http.MethodGet, a.baseURL(sandbox)+"/bank-statement?"+values.Encode(), token, nil)
	if err != nil {
		return nil, err
	}

	var stmtResp tinkoffStatementResponse
	if err := json.Unmarshal(body, &stmtResp); err != nil {
		return nil, fmt.Errorf("%w: %v", banking.ErrBankInvalidResponse, err)
	}

	statement := &banking.Statement{
		Operations: make([]banking.StatementOperation, 0, len(stmtResp.Operations)),
		RawPayload: string(body),
	}
	for _, op := range stmtResp.Operations {
		mapped, err := mapTinkoffOperation(op)
		if err != nil {
			return nil, err
		}
		statement.Operations = append(statement.Operations, mapped)
	}
	return statement, nil
}

// SubmitPayment submits a payment order and returns the bank payment id
func (a *TinkoffAdapter) SubmitPayment(ctx context.Context, token string, sandbox bool, req banking.PaymentRequest) (string, error) {
	payload := tinkoffPaymentRequest{
		DocumentNumber:           req.DocumentNumber,
		DocumentDate:             req.DocumentDate.Format(tinkoffDateLayout),
		Amount:                   req.Amount,
		Purpose:                  req.Purpose,
		PayerAccount:             req.PayerAccount,
		RecipientName:            req.Recipient.Name,
		RecipientInn:             req.Recipient.INN,
		RecipientKpp:             req.Recipient.KPP,
		RecipientAccount:         req.Recipient.AccountNumber,
		RecipientBankBik:         req.Recipient.BankBIK,
		RecipientBankName:        req.Recipient.BankName,
		RecipientBankCorrAccount: req.Recipient.BankCorrAccount,
		Priority:                 req.Priority,
		VatType:                  req.VATType,
		VatAmount:                req.VATAmount,
	}

	body, err := a.doRequest(ctx, http.MethodPost, a.baseURL(sandbox)+"/payments", token, payload)
	if err != nil {
		return "", err
	}

	var payResp tinkoffPaymentResponse
	if err := json.Unmarshal(body, &payResp); err != nil {
		return "", fmt.Errorf("%w: %v", banking.ErrBankInvalidResponse, err)
	}
	if payResp.PaymentID == "" {
		return "", fmt.Errorf("%w: empty payment id", banking.ErrBankInvalidResponse)
	}
	return payResp.PaymentID, nil
}

// GetPaymentStatus returns the bank's raw status string for a payment
func (a *TinkoffAdapter) GetPaymentStatus(ctx context.Context, token string, sandbox bool, paymentID string) (string, error) {
	body, err := a.doRequest(ctx, http.MethodGet, a.baseURL(sandbox)+"/payments/"+url.PathEscape(paymentID), token, nil)
	if err != nil {
		return "", err
	}

	var statusResp tinkoffPaymentStatusResponse
	if err := json.Unmarshal(body, &statusResp); err != nil {
		return "", fmt.Errorf("%w: %v", banking.ErrBankInvalidResponse, err)
	}
	if statusResp.Status == "" {
		return "", fmt.Errorf("%w: empty payment status", banking.ErrBankInvalidResponse)
	}
	return statusResp.Status, nil
}

// CancelPayment requests cancellation of an in-flight payment
func (a *TinkoffAdapter) CancelPayment(ctx context.Context, token string, sandbox bool, paymentID string) error {
	_, err := a.doRequest(ctx, http.MethodPost, a.baseURL(sandbox)+"/payments/"+url.PathEscape(paymentID)+"/cancel", token, nil)
	return err
}

// baseURL selects the sandbox or production API base
func (a *TinkoffAdapter) baseURL(sandbox bool) string {
	if sandbox {
		return a.config.SandboxAPIBaseURL
	}
	return a.config.APIBaseURL
}

// doRequest performs an authenticated JSON request against the business API
func (a *TinkoffAdapter) doRequest(ctx context.Context, method, requestURL, token string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("tinkoff: failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("tinkoff: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", banking.ErrBankUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tinkoff: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: HTTP %d: %s", banking.ErrBankAuthFailed, resp.StatusCode, string(body))
	}
	if resp.StatusCode >= 400 {
		var errResp tinkoffErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.ErrorMessage != "" {
			return nil, fmt.Errorf("%w: HTTP %d: %s - %s", banking.ErrBankRequestFailed,
				resp.StatusCode, errResp.ErrorCode, errResp.ErrorMessage)
		}
		return nil, fmt.Errorf("%w: HTTP %d: %s", banking.ErrBankRequestFailed, resp.StatusCode, string(body))
	}
	return body, nil
}

// mapTinkoffOperation converts one statement operation to the domain shape
func mapTinkoffOperation(op tinkoffOperation) (banking.StatementOperation, error) {
	opType, err := mapTinkoffOperationType(op.OperationType)
	if err != nil {
		return banking.StatementOperation{}, err
	}

	date, err := time.Parse(tinkoffDateTimeLayout, op.Date)
	if err != nil {
		// Statement endpoints on some environments return date-only values
		date, err = time.Parse(tinkoffDateLayout, op.Date)
		if err != nil {
			return banking.StatementOperation{}, fmt.Errorf("%w: unparseable operation date %q", banking.ErrBankInvalidResponse, op.Date)
		}
	}

	raw, _ := json.Marshal(op)

	return banking.StatementOperation{
		ExternalID:    op.ID,
		Date:          date,
		OperationType: opType,
		Amount:        op.Amount.Abs(),
		Currency:      op.Currency,
		Category:      op.Category,
		Status:        op.Status,
		Counterparty: banking.Counterparty{
			Name:          op.Counterparty.Name,
			INN:           op.Counterparty.INN,
			KPP:           op.Counterparty.KPP,
			AccountNumber: op.Counterparty.AccountNumber,
			BankName:      op.Counterparty.BankName,
			BankBIK:       op.Counterparty.BankBik,
		},
		Purpose:      op.PaymentPurpose,
		Fee:          op.Fee,
		BalanceAfter: op.BalanceAfter,
		RawPayload:   string(raw),
	}, nil
}

// mapTinkoffOperationType maps the bank's direction vocabulary
func mapTinkoffOperationType(raw string) (banking.OperationType, error) {
	switch strings.ToUpper(raw) {
	case "CREDIT":
		return banking.OperationTypeCredit, nil
	case "DEBIT":
		return banking.OperationTypeDebit, nil
	}
	return "", fmt.Errorf("%w: unknown operation type %q", banking.ErrBankInvalidResponse, raw)
}

// Ensure TinkoffAdapter implements BankProvider
var _ banking.BankProvider = (*TinkoffAdapter)(nil)
